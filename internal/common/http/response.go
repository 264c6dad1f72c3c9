package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	commonerrors "github.com/trackfit/backend/internal/common/errors"
)

type ErrorEnvelope struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	TraceID string         `json:"trace_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteErrorEnvelope(w http.ResponseWriter, status int, code, message string, details map[string]any, traceID string) {
	env := ErrorEnvelope{Code: code, Message: message}
	if len(details) > 0 {
		env.Details = details
	}
	if traceID != "" {
		env.TraceID = traceID
	}
	WriteJSON(w, status, env)
}

func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return commonerrors.ErrRequestTooLarge.WithCause(err)
		}
		return commonerrors.ErrInvalidJSON.WithCause(err)
	}
	return nil
}

func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteErrorEnvelope(w, http.StatusNotFound, CodeNotFound, "not found", nil, TraceIDFromContext(r.Context()))
}

func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	WriteErrorEnvelope(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil, TraceIDFromContext(r.Context()))
}

func WithTimeout(timeout time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next(w, r.WithContext(ctx))
		}
	}
}
