package middleware

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/moraine-llm/moraine/config"
	"github.com/moraine-llm/moraine/errors"
)

type rateLimiters struct {
	visitors map[string]*rate.Limiter
	mu       sync.Mutex
}

func (l *rateLimiters) getOrCreate(ip string, create func() *rate.Limiter) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.visitors[ip]
	if !exists {
		limiter = create()
		l.visitors[ip] = limiter
	}

	return limiter
}

// RateLimit returns a middleware implementing per-IP rate limiting with
// the configured sustained rate and burst. onLimit, when non-nil, is
// called with the client IP for every rejected request.
func RateLimit(cfg config.RateLimitConfig, onLimit func(client string)) func(http.Handler) http.Handler {
	limiters := &rateLimiters{visitors: make(map[string]*rate.Limiter)}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if idx := strings.LastIndex(ip, ":"); idx != -1 {
				ip = ip[:idx] // Strip port number if present
			}

			limiter := limiters.getOrCreate(ip, func() *rate.Limiter {
				return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
			})

			if !limiter.Allow() {
				if onLimit != nil {
					onLimit(ip)
				}
				errors.ErrorWithType(w, "Rate limit exceeded", errors.RateLimitError, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
