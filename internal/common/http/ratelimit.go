package http

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/trackfit/backend/internal/common/constants"
	commonerrors "github.com/trackfit/backend/internal/common/errors"
	"github.com/trackfit/backend/internal/common/httpmetrics"
	"github.com/trackfit/backend/internal/observability/metrics"
)

type Limiter interface {
	Allow(key string) bool
}

type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	cleanup  *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		cleanup:  time.NewTicker(constants.RateLimitCleanupInterval),
		done:     make(chan struct{}),
	}

	go rl.cleanupLimiters()

	return rl
}

func (rl *RateLimiter) cleanupLimiters() {
	for {
		select {
		case <-rl.done:
			return
		case <-rl.cleanup.C:
			rl.mu.Lock()
			for key, limiter := range rl.limiters {
				if limiter.Tokens() >= float64(rl.burst) {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		limiter, exists = rl.limiters[key]
		if !exists {
			limiter = rate.NewLimiter(rl.rate, rl.burst)
			rl.limiters[key] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanup.Stop()
		close(rl.done)
	})
}

type StrictRateLimiter struct {
	loginLimiter    Limiter
	registerLimiter Limiter
	generalLimiter  Limiter
	errs            *ErrorHandler
	ips             *ClientIPResolver
}

func NewStrictRateLimiter(login, register, general Limiter, errs *ErrorHandler) *StrictRateLimiter {
	return &StrictRateLimiter{
		loginLimiter:    login,
		registerLimiter: register,
		generalLimiter:  general,
		errs:            errs,
	}
}

func NewInMemoryStrictRateLimiter(errs *ErrorHandler) *StrictRateLimiter {
	return NewStrictRateLimiter(
		NewRateLimiter(constants.RateLimitLoginRequestsPerSecond, constants.RateLimitLoginBurst),
		NewRateLimiter(constants.RateLimitRegisterRequestsPerSecond, constants.RateLimitRegisterBurst),
		NewRateLimiter(constants.RateLimitGeneralRequestsPerSecond, constants.RateLimitGeneralBurst),
		errs,
	)
}

// WithClientIPResolver sets how requests are attributed to clients. Without
// one, limits are keyed on the socket peer.
func (srl *StrictRateLimiter) WithClientIPResolver(ips *ClientIPResolver) *StrictRateLimiter {
	srl.ips = ips
	return srl
}

func (srl *StrictRateLimiter) limiterForPath(path string) (Limiter, string) {
	switch path {
	case "/auth/login":
		return srl.loginLimiter, "login"
	case "/auth/register":
		return srl.registerLimiter, "register"
	default:
		return srl.generalLimiter, "general"
	}
}

func (srl *StrictRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		limiter, limiterType := srl.limiterForPath(path)
		if !limiter.Allow(limiterType + ":" + srl.ips.ClientIP(r)) {
			metrics.RateLimitBlocked.WithLabelValues(httpmetrics.NormalizePath(path), limiterType).Inc()
			srl.errs.HandleError(w, r, commonerrors.ErrRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type stoppable interface {
	Stop()
}

// Stop releases background cleanup held by in-memory limiters.
func (srl *StrictRateLimiter) Stop() {
	for _, l := range []Limiter{srl.loginLimiter, srl.registerLimiter, srl.generalLimiter} {
		if s, ok := l.(stoppable); ok {
			s.Stop()
		}
	}
}
