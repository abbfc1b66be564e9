package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects what the agent does with computed signals.
const (
	ModeDryRun = "dry-run" // compute and log signals only
	ModePaper  = "paper"   // apply signals to the simulated ledger
)

// Config holds environment-driven settings for the trading agent.
type Config struct {
	Port string

	// Market data
	Markets        []string
	CandleInterval string
	CandleCount    int
	EnableStream   bool

	// Run loop
	Mode          string
	RunOnce       bool
	CycleInterval time.Duration

	// Ledger
	DBPath         string
	InitialBalance float64

	// Strategy parameter file (YAML); empty means built-in defaults.
	StrategyPath string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the agent still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Markets:        splitAndTrim(getEnv("MARKETS", "KRW-BTC,KRW-ETH,KRW-XRP")),
		CandleInterval: getEnv("CANDLE_INTERVAL", "days"),
		CandleCount:    getEnvInt("CANDLE_COUNT", 200),
		EnableStream:   getEnv("ENABLE_TICKER_STREAM", "true") == "true",
		Mode:           strings.ToLower(getEnv("MODE", ModePaper)),
		RunOnce:        getEnv("RUN_ONCE", "false") == "true",
		CycleInterval:  getEnvDuration("CYCLE_INTERVAL", time.Hour),
		DBPath:         getEnv("DB_PATH", "./data/ledger.db"),
		InitialBalance: getEnvFloat("INITIAL_BALANCE", 3_000_000),
		StrategyPath:   getEnv("STRATEGY_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on out-of-range parameters.
func (c *Config) Validate() error {
	if c.Mode != ModeDryRun && c.Mode != ModePaper {
		return fmt.Errorf("invalid config: MODE must be %q or %q, got %q", ModeDryRun, ModePaper, c.Mode)
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("invalid config: MARKETS is empty")
	}
	if c.CandleCount <= 0 {
		return fmt.Errorf("invalid config: CANDLE_COUNT must be positive, got %d", c.CandleCount)
	}
	if c.InitialBalance < 0 {
		return fmt.Errorf("invalid config: INITIAL_BALANCE must be non-negative, got %.2f", c.InitialBalance)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("invalid config: CYCLE_INTERVAL must be positive, got %s", c.CycleInterval)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
