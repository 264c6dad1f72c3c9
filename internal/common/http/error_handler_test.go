package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackfit/backend/internal/common/constants"
	commonerrors "github.com/trackfit/backend/internal/common/errors"
)

func handle(t *testing.T, err error, traceID string) (*httptest.ResponseRecorder, ErrorEnvelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if traceID != "" {
		req = req.WithContext(context.WithValue(req.Context(), constants.TraceIDKey, traceID))
	}
	rec := httptest.NewRecorder()
	NewErrorHandler(testLogger(t)).HandleError(rec, req, err)

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestErrorHandler_DomainError(t *testing.T) {
	err := commonerrors.ErrInvalidToken.WithDetails(map[string]any{"reason": "token is expired"})
	rec, env := handle(t, err, "trace-1")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", env.Code)
	assert.Equal(t, "invalid token", env.Message)
	assert.Equal(t, "token is expired", env.Details["reason"])
	assert.Equal(t, "trace-1", env.TraceID)
	assert.Equal(t, "trace-1", rec.Header().Get(TraceIDHeader))
}

func TestErrorHandler_WrappedDomainError(t *testing.T) {
	err := commonerrors.ErrServiceUnavailable.WithCause(errors.New("circuit open"))
	rec, env := handle(t, err, "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Code)
	assert.Empty(t, env.TraceID)
}

func TestErrorHandler_HidesInternalDetail(t *testing.T) {
	rec, env := handle(t, errors.New("pq: password authentication failed for user trackfit"), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", env.Code)
	assert.NotContains(t, rec.Body.String(), "password authentication")
}

func TestErrorHandler_InternalCauseNotLeaked(t *testing.T) {
	err := commonerrors.ErrInternal.WithCause(errors.New("dial tcp 10.0.0.5:5432"))
	rec, env := handle(t, err, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", env.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestErrorHandler_NilErrorWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	NewErrorHandler(testLogger(t)).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Zero(t, rec.Body.Len())
}

func TestTraceIDMiddleware(t *testing.T) {
	var seen string
	handler := TraceIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceIDHeader, "incoming-trace")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "incoming-trace", seen)
	assert.Equal(t, "incoming-trace", rec.Header().Get(TraceIDHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 32)
}

func TestHealthHandler(t *testing.T) {
	up := HealthCheck{Name: "postgres", Check: func(ctx context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return errors.New("timeout") }}

	rec := httptest.NewRecorder()
	HealthHandler(testLogger(t), up)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","postgres":"up"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	HealthHandler(testLogger(t), up, down)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","postgres":"up","redis":"down"}`, rec.Body.String())
}

func TestBuildBaseHandler_RecoversPanics(t *testing.T) {
	h := BuildBaseHandler("test", testLogger(t), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/goals", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "form-action 'self'")

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, CodeInternal, env.Code)
	assert.Equal(t, rec.Header().Get(TraceIDHeader), env.TraceID)
}
