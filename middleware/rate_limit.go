package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/JustinAIDistuptors/instabids-agent-platform/config"
	"github.com/JustinAIDistuptors/instabids-agent-platform/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RateLimiter counts requests per client in a fixed window. Counts reset
// when the window rolls over.
type RateLimiter struct {
	mu          sync.Mutex
	counts      map[string]int
	windowStart time.Time
	rate        int
	window      time.Duration
}

// NewRateLimiter creates a limiter allowing rate requests per window
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counts:      make(map[string]int),
		windowStart: time.Now(),
		rate:        rate,
		window:      window,
	}
}

// Allow reports whether another request from key fits in the current window
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.windowStart) > l.window {
		l.counts = make(map[string]int)
		l.windowStart = time.Now()
	}

	if l.counts[key] >= l.rate {
		return false
	}
	l.counts[key]++
	return true
}

// RateLimit middleware limits requests per client IP using the configured
// rate and window. The health endpoint is exempt so liveness checks are
// never throttled.
func RateLimit(cfg *config.ServerConfig) gin.HandlerFunc {
	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateWindow())

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		if !limiter.Allow(c.ClientIP()) {
			logger.WithContext(c.Request.Context()).Warn("rate limit exceeded",
				"client_ip", c.ClientIP(),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
