// README: Per-client token bucket rate limit for write endpoints.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleTTL drops limiters for clients not seen for this long.
const idleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
	lastGC   time.Time
	now      func() time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: map[string]*visitor{},
		now:      time.Now,
	}
}

// Allow reports whether key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastGC) > idleTTL {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > idleTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastGC = now
	}
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RateLimit keys on the verified caller when present, else the client IP.
// A non-positive rps disables limiting.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.rps <= 0 {
			c.Next()
			return
		}
		key := CallerUID(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !rl.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
