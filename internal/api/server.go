package api

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"trading-agent/internal/events"
	"trading-agent/internal/ledger"
	"trading-agent/internal/monitor"
	"trading-agent/internal/signal"
	"trading-agent/pkg/cache"
)

// Server exposes a read-only status API over the running agent. It never
// mutates the ledger; all trading decisions happen in the agent loop.
type Server struct {
	Router  *gin.Engine
	Bus     *events.Bus
	Ledger  *ledger.Ledger
	Prices  *cache.PriceCache
	Metrics *monitor.Metrics
	Meta    SystemMeta

	mu      sync.RWMutex
	latest  map[string]signal.Signal
	started time.Time
}

// SystemMeta describes runtime status exposed by /api/status.
type SystemMeta struct {
	Mode     string
	Markets  []string
	Interval string
	Version  string
}

// NewServer wires routes and starts tracking the latest signal per market.
func NewServer(bus *events.Bus, ldgr *ledger.Ledger, prices *cache.PriceCache, metrics *monitor.Metrics, meta SystemMeta) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())

	s := &Server{
		Router:  r,
		Bus:     bus,
		Ledger:  ldgr,
		Prices:  prices,
		Metrics: metrics,
		Meta:    meta,
		latest:  make(map[string]signal.Signal),
		started: time.Now(),
	}
	s.routes()
	s.trackSignals()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/portfolio", s.getPortfolio)
		api.GET("/positions", s.getPositions)
		api.GET("/trades", s.getTrades)
		api.GET("/signals", s.getSignals)
		api.GET("/metrics", s.getMetrics)
	}
}

// trackSignals caches the most recent signal per market for /api/signals.
func (s *Server) trackSignals() {
	if s.Bus == nil {
		return
	}
	ch, _ := s.Bus.Subscribe(events.EventSignal, 100)
	go func() {
		for msg := range ch {
			sig, ok := msg.(signal.Signal)
			if !ok {
				continue
			}
			s.mu.Lock()
			s.latest[sig.Market] = sig
			s.mu.Unlock()
		}
	}()
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
