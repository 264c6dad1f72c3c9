package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	fitnessdomain "github.com/trackfit/backend/internal/fitness/domain"
	"github.com/trackfit/backend/internal/web/session"
)

type APIClient interface {
	Register(ctx context.Context, email, password string, name *string) (session.User, error)
	Login(ctx context.Context, email, password string) (session.User, error)
	Logout()
	Me(ctx context.Context) (session.User, error)
	Goals(ctx context.Context) ([]fitnessdomain.Goal, error)
	Meals(ctx context.Context) ([]fitnessdomain.Meal, error)
	Sessions(ctx context.Context) ([]fitnessdomain.Session, error)
}

// ClientFactory builds an API client bound to the browser session of c.
type ClientFactory func(c *gin.Context) APIClient

const clientContextKey = "api_client"

func NewClientFactory(apiBaseURL string, timeout time.Duration, base http.RoundTripper, secureCookies bool) ClientFactory {
	return func(c *gin.Context) APIClient {
		tokens := session.NewSession(session.NewCookieStore(c.Writer, c.Request, secureCookies))
		return session.NewClient(apiBaseURL, timeout, base, tokens).ForwardFor(c.RemoteIP())
	}
}

// clientFor reuses one client per request so the guard and the page share
// the same session mirror.
func clientFor(c *gin.Context, factory ClientFactory) APIClient {
	if v, ok := c.Get(clientContextKey); ok {
		if client, ok := v.(APIClient); ok {
			return client
		}
	}
	client := factory(c)
	c.Set(clientContextKey, client)
	return client
}
