package http

import (
	"net/http"
	"runtime/debug"

	"github.com/trackfit/backend/internal/common/constants"
	"github.com/trackfit/backend/internal/common/httpmetrics"
	"github.com/trackfit/backend/internal/common/logger"
)

const defaultCSP = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; " +
	"connect-src 'self'; form-action 'self'; frame-ancestors 'none'"

// BuildBaseHandler wraps handler with the middleware every service shares.
// The first middleware listed is the outermost.
func BuildBaseHandler(appName string, log *logger.Logger, handler http.Handler) http.Handler {
	return chain(handler,
		SecurityHeadersMiddleware(defaultCSP),
		TraceIDMiddleware,
		RecoveryMiddleware(log),
		MaxRequestSizeMiddleware(constants.DefaultMaxRequestSize),
		httpmetrics.New(appName).Wrap,
	)
}

func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func SecurityHeadersMiddleware(csp string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
			if csp != "" {
				h.Set("Content-Security-Policy", csp)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RecoveryMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithFields(r.Context(), logger.Fields{
						"method": r.Method,
						"path":   r.URL.Path,
						"action": "panic_recovered",
					}).Criticalf("panic recovered: %v\n%s", rec, debug.Stack())
					WriteErrorEnvelope(w, http.StatusInternalServerError, CodeInternal, "internal server error", nil, TraceIDFromContext(r.Context()))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
