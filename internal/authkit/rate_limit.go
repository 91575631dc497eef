package authkit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// LoginRateLimiter keeps one token bucket per client key.
type LoginRateLimiter struct {
	mutex     sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastPurge time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginRateLimiter allows perSecond attempts per client with the given burst.
func NewLoginRateLimiter(perSecond float64, burst int) *LoginRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &LoginRateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether one more attempt for the key fits into its bucket.
func (registry *LoginRateLimiter) Allow(key string) bool {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	now := registry.now()
	registry.purgeIdleLocked(now)
	entry, exists := registry.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(registry.limit, registry.burst)}
		registry.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
func (registry *LoginRateLimiter) Middleware() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		if !registry.Allow(contextGin.ClientIP()) {
			contextGin.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		contextGin.Next()
	}
}

// purgeIdleLocked drops idle buckets at most once per idleTTL.
func (registry *LoginRateLimiter) purgeIdleLocked(now time.Time) {
	if registry.lastPurge.IsZero() {
		registry.lastPurge = now
		return
	}
	if now.Sub(registry.lastPurge) < registry.idleTTL {
		return
	}
	registry.lastPurge = now
	for key, entry := range registry.limiters {
		if now.Sub(entry.lastSeen) > registry.idleTTL {
			delete(registry.limiters, key)
		}
	}
}
