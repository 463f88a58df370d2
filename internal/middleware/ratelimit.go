package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rootedapp/portal/internal/app/metrics"
	"github.com/rootedapp/portal/internal/config"
	"github.com/rootedapp/portal/internal/errors"
	"github.com/rootedapp/portal/internal/httputil"
	"github.com/rootedapp/portal/internal/identity"
	"github.com/rootedapp/portal/internal/reqscope"
	"github.com/rootedapp/portal/pkg/logger"
)

// RateLimiter enforces one tier of limits per client key. A tier stacks
// three windows; a request must pass all of them. Keys are the authenticated
// user ID when available, the client IP otherwise.
type RateLimiter struct {
	name string
	tier config.RateTier

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	logger *logger.Logger
}

type clientLimiter struct {
	short    *rate.Limiter
	medium   *rate.Limiter
	long     *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter for the named tier.
func NewRateLimiter(name string, tier config.RateTier, log *logger.Logger) *RateLimiter {
	return &RateLimiter{
		name:     name,
		tier:     tier,
		limiters: make(map[string]*clientLimiter),
		logger:   log,
	}
}

func windowLimiter(w config.RateWindow) *rate.Limiter {
	if w.Times <= 0 || w.Seconds <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(w.Times)/float64(w.Seconds)), w.Times)
}

func (rl *RateLimiter) getLimiter(key string) *clientLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{
			short:  windowLimiter(rl.tier.Short),
			medium: windowLimiter(rl.tier.Medium),
			long:   windowLimiter(rl.tier.Long),
		}
		rl.limiters[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl
}

// allow consumes one request from every window, reporting the narrowest
// window that rejected it.
func (cl *clientLimiter) allow(tier config.RateTier) (bool, config.RateWindow) {
	if !cl.short.Allow() {
		return false, tier.Short
	}
	if !cl.medium.Allow() {
		return false, tier.Medium
	}
	if !cl.long.Allow() {
		return false, tier.Long
	}
	return true, config.RateWindow{}
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.clientKey(r)

		allowed, window := rl.getLimiter(key).allow(rl.tier)
		if !allowed {
			rl.logger.WithFields(map[string]interface{}{
				"key":    key,
				"tier":   rl.name,
				"path":   r.URL.Path,
				"method": r.Method,
			}).Warn("rate limit exceeded")
			metrics.RecordRateLimited(rl.name)

			httputil.WriteError(w, errors.RateLimitExceeded(window.Times, fmt.Sprintf("%ds", window.Seconds)))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller: the authenticated user when the identity
// stage ran before us, the client IP otherwise.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	if principal, err := identity.FromContext(r.Context()); err == nil && !principal.Anonymous {
		return "user:" + principal.UserID
	}
	return "ip:" + reqscope.ClientIP(r)
}

// Cleanup drops limiters idle longer than maxIdle and returns how many were
// removed.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for key, cl := range rl.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}
