package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Per-IP rate limiters for the status API.
var (
	ipLimiters = make(map[string]*rate.Limiter)
	limiterMu  sync.Mutex
)

func getIPLimiter(ip string) *rate.Limiter {
	limiterMu.Lock()
	defer limiterMu.Unlock()
	if limiter, exists := ipLimiters[ip]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(10), 30)
	ipLimiters[ip] = limiter
	return limiter
}

// RateLimitMiddleware rejects clients that exceed the per-IP budget.
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !getIPLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs method, path, status and latency for each request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("http: %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
