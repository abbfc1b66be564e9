package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mode":        s.Meta.Mode,
		"markets":     s.Meta.Markets,
		"interval":    s.Meta.Interval,
		"version":     s.Meta.Version,
		"uptime":      time.Since(s.started).String(),
		"server_time": time.Now().UTC(),
	})
}

func (s *Server) getPortfolio(c *gin.Context) {
	marks := map[string]float64{}
	if s.Prices != nil {
		marks = s.Prices.Snapshot()
	}
	c.JSON(http.StatusOK, s.Ledger.Status(marks))
}

func (s *Server) getPositions(c *gin.Context) {
	c.JSON(http.StatusOK, s.Ledger.Positions())
}

func (s *Server) getTrades(c *gin.Context) {
	trades := s.Ledger.TradeHistory()
	out := make([]gin.H, 0, len(trades))
	for _, t := range trades {
		out = append(out, gin.H{
			"id":           t.ID,
			"market":       t.Market,
			"side":         t.Side,
			"qty":          t.Qty,
			"price":        t.Price,
			"fee":          t.Fee,
			"realized_pnl": t.RealizedPnL,
			"cash_after":   t.CashAfter,
			"reason":       t.Reason,
			"executed_at":  t.ExecutedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getSignals(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]gin.H, 0, len(s.latest))
	for _, sig := range s.latest {
		entry := gin.H{
			"market": sig.Market,
			"action": sig.Action,
			"rule":   sig.Rule,
			"reason": sig.Reason,
			"price":  sig.Snapshot.Price,
		}
		if sig.Snapshot.RSI.Valid {
			entry["rsi"] = sig.Snapshot.RSI.Float64
		}
		if sig.Snapshot.MAShort.Valid {
			entry["ma_short"] = sig.Snapshot.MAShort.Float64
		}
		if sig.Snapshot.MALong.Valid {
			entry["ma_long"] = sig.Snapshot.MALong.Float64
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.Snapshot())
}
