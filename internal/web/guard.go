package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trackfit/backend/internal/common/logger"
	"github.com/trackfit/backend/internal/observability/metrics"
	"github.com/trackfit/backend/internal/web/session"
)

const userContextKey = "current_user"

// RequireAuth checks the profile once per page load. The check is bound to
// the request context, so a client that navigates away cancels it and
// nothing is rendered.
func RequireAuth(clients ClientFactory, timeout time.Duration, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqCtx := c.Request.Context()
		ctx, cancel := context.WithTimeout(reqCtx, timeout)
		defer cancel()

		user, err := clientFor(c, clients).Me(ctx)
		switch {
		case err == nil:
			metrics.RouteGuardChecksTotal.WithLabelValues("allowed").Inc()
			c.Set(userContextKey, user)
			c.Next()

		case reqCtx.Err() != nil:
			metrics.RouteGuardChecksTotal.WithLabelValues("cancelled").Inc()
			c.Abort()

		case isTimeout(ctx, err):
			metrics.RouteGuardChecksTotal.WithLabelValues("timeout").Inc()
			log.WithFields(reqCtx, logger.Fields{
				"path":   c.Request.URL.Path,
				"action": "route_guard_timeout",
			}).Warnf("profile check timed out: %v", err)
			c.HTML(http.StatusOK, "loading", gin.H{"Path": c.Request.URL.Path})
			c.Abort()

		default:
			metrics.RouteGuardChecksTotal.WithLabelValues("denied").Inc()
			if !session.IsUnauthorized(err) {
				log.WithFields(reqCtx, logger.Fields{
					"path":   c.Request.URL.Path,
					"action": "route_guard_failed",
				}).Warnf("profile check failed: %v", err)
			}
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
		}
	}
}

func currentUser(c *gin.Context) (session.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return session.User{}, false
	}
	user, ok := v.(session.User)
	return user, ok
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
