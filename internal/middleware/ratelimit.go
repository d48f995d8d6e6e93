package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gioe/aiq-sub010/internal/response"
)

// RateLimiter caps how often a participant may hit session-start paths.
// Runs behind the JWT guard, so the key is the authenticated user id;
// unauthenticated callers (should not reach it) fall back to client IP.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
}

type window struct {
	count    int
	openedAt time.Time
}

// NewRateLimiter allows limit requests per period per participant.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
	}

	go func() {
		for range time.Tick(time.Minute) {
			rl.sweep()
		}
	}()

	return rl
}

// Middleware rejects a request with 429 once the caller's window is spent.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if claims := GetClaims(c); claims != nil {
			key = claims.UserID.String()
		}

		now := time.Now()

		rl.mu.Lock()
		w, ok := rl.windows[key]
		if !ok || now.Sub(w.openedAt) >= rl.period {
			w = &window{openedAt: now}
			rl.windows[key] = w
		}
		w.count++
		blocked := w.count > rl.limit
		rl.mu.Unlock()

		if blocked {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, w := range rl.windows {
		if time.Since(w.openedAt) > 2*rl.period {
			delete(rl.windows, key)
		}
	}
}
