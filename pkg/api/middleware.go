package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/op/go-logging.v1"
)

// CORSMiddleware handles CORS headers
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimiter tracks request rates per IP
type RateLimiter struct {
	requests map[string]*requestCounter
	limit    int
	window   time.Duration
	mu       sync.Mutex
	stop     chan struct{}
	once     sync.Once
}

type requestCounter struct {
	count     int
	resetTime time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerMinute per IP.
// Zero or less disables limiting.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	limiter := &RateLimiter{
		requests: make(map[string]*requestCounter),
		limit:    requestsPerMinute,
		window:   time.Minute,
		stop:     make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

// Allow checks if a request should be allowed
func (rl *RateLimiter) Allow(ip string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	counter, exists := rl.requests[ip]
	if !exists || now.After(counter.resetTime) {
		rl.requests[ip] = &requestCounter{count: 1, resetTime: now.Add(rl.window)}
		return true
	}

	if counter.count >= rl.limit {
		return false
	}

	counter.count++
	return true
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		now := time.Now()
		for ip, counter := range rl.requests {
			if now.After(counter.resetTime) {
				delete(rl.requests, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware rejects clients over the limiter's rate
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:   "Rate limit exceeded",
				Message: fmt.Sprintf("Maximum %d requests per minute", limiter.limit),
			})
			return
		}

		c.Next()
	}
}

// LoggingMiddleware logs each request at INFO, failures at WARNING
func LoggingMiddleware(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		line := fmt.Sprintf("%d | %s | %s %s | %v",
			status, c.ClientIP(), c.Request.Method, c.Request.URL.Path, time.Since(start))

		if status >= http.StatusInternalServerError {
			log.Warning(line)
		} else {
			log.Info(line)
		}
	}
}

// ErrorResponse is a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
