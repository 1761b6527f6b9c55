package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterStaleAfter = 10 * time.Minute

// limiterStore holds one token-bucket limiter per client IP.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rps      int
	burst    int
}

func (s *limiterStore) allow(ip string) bool {
	s.mu.Lock()
	l, ok := s.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.rps), s.burst)
		s.limiters[ip] = l
	}
	s.lastSeen[ip] = time.Now()
	s.mu.Unlock()
	return l.Allow()
}

// sweep drops limiters for IPs not seen recently.
func (s *limiterStore) sweep() {
	for {
		time.Sleep(5 * time.Minute)
		s.mu.Lock()
		for ip, seen := range s.lastSeen {
			if time.Since(seen) > limiterStaleAfter {
				delete(s.limiters, ip)
				delete(s.lastSeen, ip)
			}
		}
		s.mu.Unlock()
	}
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	store := &limiterStore{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rps:      rps,
		burst:    burst,
	}
	go store.sweep()

	return func(c *gin.Context) {
		if !store.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
