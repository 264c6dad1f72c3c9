package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/trackfit/backend/internal/observability/metrics"
)

const uniqueViolationCode = "23505"

func extractTableFromOperation(operation string) string {
	operation = strings.ToLower(operation)
	switch {
	case strings.Contains(operation, "user"):
		return "users"
	case strings.Contains(operation, "goal"):
		return "goals"
	case strings.Contains(operation, "meal"):
		return "meals"
	case strings.Contains(operation, "session"):
		return "sessions"
	default:
		return "unknown"
	}
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func HandleQueryError(err error, notFoundErr error, operation string, startTime time.Time) error {
	table := extractTableFromOperation(operation)
	metrics.DBQueryDurationSeconds.WithLabelValues(operation, table).Observe(time.Since(startTime).Seconds())

	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFoundErr
	}
	metrics.DBQueryErrors.WithLabelValues(operation, table, fmt.Sprintf("%T", err)).Inc()
	return fmt.Errorf("failed to %s: %w", operation, err)
}

func HandleExecError(err error, operation string, startTime time.Time) error {
	table := extractTableFromOperation(operation)
	metrics.DBQueryDurationSeconds.WithLabelValues(operation, table).Observe(time.Since(startTime).Seconds())

	if err == nil {
		return nil
	}
	metrics.DBQueryErrors.WithLabelValues(operation, table, fmt.Sprintf("%T", err)).Inc()
	return fmt.Errorf("failed to %s: %w", operation, err)
}

func MeasureQueryDuration(operation string, startTime time.Time) {
	table := extractTableFromOperation(operation)
	metrics.DBQueryDurationSeconds.WithLabelValues(operation, table).Observe(time.Since(startTime).Seconds())
}
