package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Strategy holds the indicator and risk parameters for signal evaluation
// and position sizing. Zero-valued fields in the YAML file keep their
// defaults.
type Strategy struct {
	RSIPeriod     int `yaml:"rsi_period"`
	MAShortPeriod int `yaml:"ma_short_period"`
	MALongPeriod  int `yaml:"ma_long_period"`

	RSIOverbought float64 `yaml:"rsi_overbought"`
	RSIOversold   float64 `yaml:"rsi_oversold"`

	StopLossPct   float64 `yaml:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct"`

	InvestFraction      float64 `yaml:"invest_fraction"`
	MaxPerAssetFraction float64 `yaml:"max_per_asset_fraction"`
	FeeRate             float64 `yaml:"fee_rate"`
	MinNotional         float64 `yaml:"min_notional"`
}

// DefaultStrategy returns the stock RSI(14) + MA(5/20) parameter set.
func DefaultStrategy() Strategy {
	return Strategy{
		RSIPeriod:           14,
		MAShortPeriod:       5,
		MALongPeriod:        20,
		RSIOverbought:       70,
		RSIOversold:         30,
		StopLossPct:         0.05,
		TakeProfitPct:       0.15,
		InvestFraction:      0.95,
		MaxPerAssetFraction: 0.30,
		FeeRate:             0.0005,
		MinNotional:         5_000,
	}
}

// LoadStrategy reads strategy parameters from a YAML file layered over the
// defaults. An empty path returns the defaults unchanged.
func LoadStrategy(path string) (Strategy, error) {
	s := DefaultStrategy()
	if path == "" {
		return s, s.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read strategy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse strategy file: %w", err)
	}
	return s, s.Validate()
}

// Validate fails fast on parameters that would make evaluation or sizing
// nonsensical.
func (s Strategy) Validate() error {
	if s.RSIPeriod <= 0 || s.MAShortPeriod <= 0 || s.MALongPeriod <= 0 {
		return fmt.Errorf("invalid strategy: indicator periods must be positive")
	}
	if s.MAShortPeriod >= s.MALongPeriod {
		return fmt.Errorf("invalid strategy: ma_short_period %d must be below ma_long_period %d", s.MAShortPeriod, s.MALongPeriod)
	}
	if s.RSIOversold < 0 || s.RSIOverbought > 100 || s.RSIOversold >= s.RSIOverbought {
		return fmt.Errorf("invalid strategy: RSI thresholds must satisfy 0 <= oversold < overbought <= 100")
	}
	if s.StopLossPct <= 0 || s.TakeProfitPct <= 0 {
		return fmt.Errorf("invalid strategy: stop_loss_pct and take_profit_pct must be positive")
	}
	if s.InvestFraction <= 0 || s.InvestFraction > 1 {
		return fmt.Errorf("invalid strategy: invest_fraction must be in (0, 1], got %f", s.InvestFraction)
	}
	if s.MaxPerAssetFraction <= 0 || s.MaxPerAssetFraction > 1 {
		return fmt.Errorf("invalid strategy: max_per_asset_fraction must be in (0, 1], got %f", s.MaxPerAssetFraction)
	}
	if s.FeeRate < 0 || s.FeeRate >= 1 {
		return fmt.Errorf("invalid strategy: fee_rate must be in [0, 1), got %f", s.FeeRate)
	}
	if s.MinNotional < 0 {
		return fmt.Errorf("invalid strategy: min_notional must be non-negative, got %f", s.MinNotional)
	}
	return nil
}
