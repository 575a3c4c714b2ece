package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// refreshWindow tracks requests from an IP in the current window
type refreshWindow struct {
	Count   int
	FirstAt time.Time
}

// RateLimiter allows at most maxRequests per IP in each fixed window
type RateLimiter struct {
	mu           sync.Mutex
	windows      map[string]*refreshWindow
	maxRequests  int
	windowPeriod time.Duration
	now          func() time.Time
}

// NewRateLimiter creates a new rate limiter
// maxRequests: requests allowed per IP within the window
// windowPeriod: time window for counting requests
func NewRateLimiter(maxRequests int, windowPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		windows:      make(map[string]*refreshWindow),
		maxRequests:  maxRequests,
		windowPeriod: windowPeriod,
		now:          time.Now,
	}
}

// StartCleanup removes expired windows every interval until stop is closed
func (rl *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rl.cleanup()
			}
		}
	}()
}

// cleanup removes expired entries
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, w := range rl.windows {
		if now.Sub(w.FirstAt) >= rl.windowPeriod {
			delete(rl.windows, ip)
		}
	}
}

// Allow records a request from ip and reports whether it may proceed, how
// many requests remain in the window and, when denied, how long until the
// window resets.
func (rl *RateLimiter) Allow(ip string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, exists := rl.windows[ip]
	if !exists || now.Sub(w.FirstAt) >= rl.windowPeriod {
		rl.windows[ip] = &refreshWindow{Count: 1, FirstAt: now}
		return true, rl.maxRequests - 1, 0
	}

	if w.Count >= rl.maxRequests {
		return false, 0, rl.windowPeriod - now.Sub(w.FirstAt)
	}
	w.Count++
	return true, rl.maxRequests - w.Count, 0
}

// Len returns the number of tracked IPs
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// RateLimit rejects requests over the limiter's budget with 429
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, retryAfter := rl.Allow(c.ClientIP())

		// Set headers for client awareness
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Too many refresh requests. Please try again in %d second(s).", seconds),
				"retry_after": seconds,
			})
			return
		}

		c.Next()
	}
}
