package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// visitor holds a per-voter token bucket and the last time it was used.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns a process-local token-bucket limiter keyed by voter key
// (falling back to client IP). Used on the vote API to absorb double-clicks
// and scripted vote floods; idle buckets are evicted opportunistically.
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		visitors = make(map[string]*visitor)
		lastGC   = time.Now()
	)

	return func(c *gin.Context) {
		key, ok := VoterKey(c)
		if !ok {
			key = "ip:" + c.ClientIP()
		}

		mu.Lock()
		v, found := visitors[key]
		if !found {
			v = &visitor{limiter: rate.NewLimiter(rps, burst)}
			visitors[key] = v
		}
		v.lastSeen = time.Now()

		if time.Since(lastGC) > 10*time.Minute {
			for k, vv := range visitors {
				if time.Since(vv.lastSeen) > 10*time.Minute {
					delete(visitors, k)
				}
			}
			lastGC = time.Now()
		}
		mu.Unlock()

		if !v.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
