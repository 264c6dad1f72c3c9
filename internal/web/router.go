package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trackfit/backend/internal/common/logger"
)

//go:embed templates/*.html
var templatesFS embed.FS

type RouterConfig struct {
	Clients       ClientFactory
	CSRFKey       []byte
	SecureCookies bool
	GuardTimeout  time.Duration
	Log           *logger.Logger
}

var templateFuncs = template.FuncMap{
	"date": func(layout string, t time.Time) string {
		return t.Format(layout)
	},
}

func ParseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
}

func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	tmpl, err := ParseTemplates()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := NewHandlers(cfg.Clients, cfg.Log)

	pages := router.Group("/")
	pages.Use(CSRFMiddleware(cfg.CSRFKey, cfg.SecureCookies))
	pages.GET("/", h.Landing)
	pages.GET("/login", h.LoginForm)
	pages.POST("/login", h.Login)
	pages.GET("/signup", h.SignupForm)
	pages.POST("/signup", h.Signup)
	pages.POST("/logout", h.Logout)

	me := pages.Group("/me")
	me.Use(RequireAuth(cfg.Clients, cfg.GuardTimeout, cfg.Log))
	me.GET("/dashboard", h.Dashboard)
	me.GET("/goals", h.Goals)
	me.GET("/sessions", h.Sessions)
	me.GET("/nutrition", h.Nutrition)

	return router, nil
}
