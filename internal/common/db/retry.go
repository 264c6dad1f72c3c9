package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/trackfit/backend/internal/common/logger"
	"github.com/trackfit/backend/internal/observability/metrics"
)

// RetryConfig drives RetryWithBackoff. Only reads are retried; writes such
// as user creation run once so a retry can never double-insert.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2.0,
}

const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
	lockNotAvailable     = "55P03"
)

func isTransient(err error) bool {
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception.
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
		switch pgErr.Code {
		case serializationFailure, deadlockDetected, lockNotAvailable:
			return true
		}
		return false
	}

	return pgconn.SafeToRetry(err)
}

func RetryWithBackoff(ctx context.Context, log *logger.Logger, cfg RetryConfig, read func() error) error {
	delay := cfg.InitialDelay
	var err error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = read(); err == nil {
			if attempt > 1 {
				metrics.DBRetriesTotal.WithLabelValues("recovered").Inc()
				if log != nil {
					log.Infof("database read recovered on attempt %d", attempt)
				}
			}
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		metrics.DBRetriesTotal.WithLabelValues("retried").Inc()
		if log != nil {
			log.Warnf("database read failed (attempt %d/%d), retrying in %v: %v", attempt, cfg.MaxAttempts, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	metrics.DBRetriesTotal.WithLabelValues("exhausted").Inc()
	return fmt.Errorf("database read failed after %d attempts: %w", cfg.MaxAttempts, err)
}
