package api

import (
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/askdb/askdb/internal/auth"
)

const limiterIdleExpiry = 15 * time.Minute

// RateLimiter keeps one token bucket per client. Buckets of clients idle
// for limiterIdleExpiry are evicted.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	clients *cache.Cache
}

// NewRateLimiter returns nil when perSecond is not positive, which disables
// limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: cache.New(limiterIdleExpiry, limiterIdleExpiry/3),
	}
}

func (l *RateLimiter) Allow(client string) bool {
	return l.limiter(client).Allow()
}

func (l *RateLimiter) limiter(client string) *rate.Limiter {
	if cached, ok := l.clients.Get(client); ok {
		limiter := cached.(*rate.Limiter)
		l.clients.SetDefault(client, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	if err := l.clients.Add(client, limiter, cache.DefaultExpiration); err != nil {
		// Lost a race with another request from the same client.
		if cached, ok := l.clients.Get(client); ok {
			return cached.(*rate.Limiter)
		}
	}
	return limiter
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(auth.ClientID(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(r.Context(), w, http.StatusTooManyRequests, "rate limit exceeded, slow down and retry")
			return
		}
		next.ServeHTTP(w, r)
	})
}
