// internal/api/middleware.go
package api

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/ScriptStudio/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RequestIDMiddleware 为每个请求分配 ID，并放入请求 ctx 供下游日志关联
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}

		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(utils.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// LoggerMiddleware 记录访问日志
func LoggerMiddleware() gin.HandlerFunc {
	logger := utils.GetLogger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(requestIDKey),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("HTTP request", fields)
		default:
			logger.Debug("HTTP request", fields)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimiter implements a fixed-window rate limiter keyed by client.
type RateLimiter struct {
	visitors map[string]*Visitor
	mu       sync.Mutex
	stop     chan struct{}
	once     sync.Once
}

// Visitor represents a client with rate limiting data
type Visitor struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop.
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*Visitor),
		stop:     make(chan struct{}),
	}
	go rl.cleanup(10 * time.Minute)
	return rl
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup removes visitors whose window has expired
func (rl *RateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, visitor := range rl.visitors {
				if now.After(visitor.Reset) {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Allow checks if a visitor is allowed to make a request and returns the
// values for the rate limit headers.
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	visitor, exists := rl.visitors[key]

	if !exists || now.After(visitor.Reset) {
		visitor = &Visitor{
			Limit:     limit,
			Remaining: limit - 1,
			Reset:     now.Add(window),
		}
		rl.visitors[key] = visitor
		return true, visitor.Remaining, visitor.Reset
	}

	if visitor.Remaining <= 0 {
		return false, 0, visitor.Reset
	}

	visitor.Remaining--
	return true, visitor.Remaining, visitor.Reset
}

// RateLimitMiddleware creates a rate limiting middleware
func RateLimitMiddleware(rl *RateLimiter, limit int, window time.Duration, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	response := NewResponseHelper()
	return func(c *gin.Context) {
		allowed, remaining, reset := rl.Allow(keyFunc(c), limit, window)

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, ErrorRateLimitExceeded, "rate limit exceeded, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimitByIP applies rate limiting based on client IP address
func RateLimitByIP(rl *RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimitMiddleware(rl, limit, window, func(c *gin.Context) string {
		return c.ClientIP()
	})
}
