package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/trackfit/backend/internal/common/clock"
	commonerrors "github.com/trackfit/backend/internal/common/errors"
	"github.com/trackfit/backend/internal/common/logger"
	"github.com/trackfit/backend/internal/observability/metrics"
)

// CircuitBreaker rejects calls with ErrCircuitOpen once Threshold
// consecutive unexpected failures have been seen, until ResetAfter elapses.
type CircuitBreaker struct {
	mu          sync.Mutex
	failures    int32
	lastFailure time.Time

	threshold  int32
	timeout    time.Duration
	resetAfter time.Duration
	name       string
	log        *logger.Logger
	clock      clock.Clock
	expected   []error
}

type CircuitBreakerConfig struct {
	Threshold  int32
	Timeout    time.Duration
	ResetAfter time.Duration
	Name       string
	Logger     *logger.Logger
	Clock      clock.Clock
	// ExpectedErrors are business outcomes (not found, duplicate) that
	// must not count toward opening the circuit.
	ExpectedErrors []error
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	clk := config.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &CircuitBreaker{
		threshold:  config.Threshold,
		timeout:    config.Timeout,
		resetAfter: config.ResetAfter,
		name:       config.Name,
		log:        config.Logger,
		clock:      clk,
		expected:   config.ExpectedErrors,
	}
}

func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.openLocked()
}

func (cb *CircuitBreaker) openLocked() bool {
	open := cb.failures >= cb.threshold && !cb.lastFailure.IsZero()
	if open && cb.clock.Since(cb.lastFailure) > cb.resetAfter {
		cb.failures = 0
		cb.lastFailure = time.Time{}
		open = false
	}
	cb.publish(open)
	return open
}

func (cb *CircuitBreaker) publish(open bool) {
	if cb.name == "" {
		return
	}
	value := 0.0
	if open {
		value = 1
	}
	metrics.CircuitBreakerOpen.WithLabelValues(cb.name).Set(value)
}

func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if cb.IsOpen() {
		if cb.log != nil {
			cb.log.WithFields(ctx, logger.Fields{
				"breaker": cb.name,
				"action":  "circuit_open",
			}).Warn("circuit breaker open, rejecting call")
		}
		return commonerrors.ErrCircuitOpen
	}

	callCtx := ctx
	if cb.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cb.timeout)
		defer cancel()
	}

	err := fn(callCtx)
	switch {
	case err == nil:
		cb.record(false)
	case !cb.isExpected(err):
		cb.record(true)
	}
	return err
}

func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !failed {
		cb.failures = 0
		cb.lastFailure = time.Time{}
		return
	}

	cb.failures++
	cb.lastFailure = cb.clock.Now()
	if cb.name != "" {
		metrics.CircuitBreakerFailures.WithLabelValues(cb.name).Inc()
	}
	if cb.log != nil {
		cb.log.Warnf("circuit breaker [%s]: failure %d/%d recorded", cb.name, cb.failures, cb.threshold)
	}
}

func (cb *CircuitBreaker) isExpected(err error) bool {
	for _, target := range cb.expected {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
