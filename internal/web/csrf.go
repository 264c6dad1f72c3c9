package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

const csrfFieldName = "gorilla.csrf.Token"

// CSRFMiddleware adapts gorilla/csrf to gin. Rejected requests stop the
// chain; accepted ones continue with the token-carrying request.
func CSRFMiddleware(key []byte, secure bool) gin.HandlerFunc {
	protect := csrf.Protect(
		key,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.Path("/"),
		csrf.FieldName(csrfFieldName),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
	)

	return func(c *gin.Context) {
		if !secure {
			c.Request = csrf.PlaintextHTTPRequest(c.Request)
		}

		passed := false
		protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
		}
	}
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>Session expirée</title></head>` +
		`<body><h1>Session expirée</h1><p>Le formulaire a expiré. <a href="/login">Réessayer</a></p></body></html>`))
}
