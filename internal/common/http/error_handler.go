package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/trackfit/backend/internal/common/constants"
	commonerrors "github.com/trackfit/backend/internal/common/errors"
	"github.com/trackfit/backend/internal/common/httpmetrics"
	"github.com/trackfit/backend/internal/common/logger"
	"github.com/trackfit/backend/internal/observability/metrics"
)

// ErrorHandler renders errors as the JSON error envelope. Errors that are
// not DomainErrors become INTERNAL_ERROR and their text is never sent.
type ErrorHandler struct {
	log *logger.Logger
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{log: log}
}

func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	ctx := r.Context()
	domainErr, ok := commonerrors.AsDomainError(err)
	if !ok {
		h.log.WithFields(ctx, logger.Fields{
			"path":   r.URL.Path,
			"action": "unhandled_error",
		}).Errorf("unhandled error: %v", err)
		domainErr = commonerrors.ErrInternal
	} else {
		h.logDomainError(ctx, domainErr)
	}

	status := domainErr.HTTPStatus()
	metrics.DomainErrorsTotal.WithLabelValues(
		string(domainErr.Category()),
		domainErr.Code(),
		strconv.Itoa(status),
	).Inc()
	metrics.HTTPErrorsTotal.WithLabelValues(
		strconv.Itoa(status),
		httpmetrics.NormalizePath(r.URL.Path),
		r.Method,
	).Inc()

	traceID := TraceIDFromContext(ctx)
	if traceID != "" {
		w.Header().Set(TraceIDHeader, traceID)
	}
	WriteErrorEnvelope(w, status, domainErr.Code(), domainErr.Message(), domainErr.Details(), traceID)
}

func (h *ErrorHandler) logDomainError(ctx context.Context, err commonerrors.DomainError) {
	fields := logger.Fields{
		"error_code": err.Code(),
		"category":   string(err.Category()),
		"status":     err.HTTPStatus(),
	}
	if err.Category() == commonerrors.CategoryInternal {
		fields["action"] = "internal_error"
		h.log.WithFields(ctx, fields).Errorf("internal error: %v", err)
		return
	}
	if h.log.Enabled(logger.DEBUG) {
		fields["action"] = "domain_error"
		h.log.WithFields(ctx, fields).Debugf("domain error: %v", err)
	}
}

func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(constants.TraceIDKey).(string)
	return traceID
}
