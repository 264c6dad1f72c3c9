package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"

	"github.com/trackfit/backend/internal/common/logger"
	"github.com/trackfit/backend/internal/web/session"
)

type Handlers struct {
	clients ClientFactory
	log     *logger.Logger
}

func NewHandlers(clients ClientFactory, log *logger.Logger) *Handlers {
	return &Handlers{clients: clients, log: log}
}

func pageData(c *gin.Context, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["CSRFField"] = csrf.TemplateField(c.Request)
	if user, ok := currentUser(c); ok {
		data["User"] = user
	}
	return data
}

func (h *Handlers) Landing(c *gin.Context) {
	c.HTML(http.StatusOK, "index", pageData(c, nil))
}

func (h *Handlers) LoginForm(c *gin.Context) {
	c.HTML(http.StatusOK, "login", pageData(c, nil))
}

func (h *Handlers) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	_, err := clientFor(c, h.clients).Login(c.Request.Context(), email, password)
	if err != nil {
		status, message := h.formError(c, "login", err)
		c.HTML(status, "login", pageData(c, gin.H{"Error": message, "Email": email}))
		return
	}
	c.Redirect(http.StatusSeeOther, "/me/dashboard")
}

func (h *Handlers) SignupForm(c *gin.Context) {
	c.HTML(http.StatusOK, "signup", pageData(c, nil))
}

func (h *Handlers) Signup(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	var name *string
	if raw := strings.TrimSpace(c.PostForm("name")); raw != "" {
		name = &raw
	}

	_, err := clientFor(c, h.clients).Register(c.Request.Context(), email, password, name)
	if err != nil {
		status, message := h.formError(c, "signup", err)
		c.HTML(status, "signup", pageData(c, gin.H{"Error": message, "Email": email, "Name": name}))
		return
	}
	c.Redirect(http.StatusSeeOther, "/me/dashboard")
}

func (h *Handlers) Logout(c *gin.Context) {
	clientFor(c, h.clients).Logout()
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handlers) Dashboard(c *gin.Context) {
	client := clientFor(c, h.clients)
	ctx := c.Request.Context()

	goals, goalsErr := client.Goals(ctx)
	sessions, sessionsErr := client.Sessions(ctx)
	meals, mealsErr := client.Meals(ctx)
	h.logFetchError(c, "dashboard", errors.Join(goalsErr, sessionsErr, mealsErr))

	burned := 0
	for _, s := range sessions {
		burned += s.Calories
	}
	eaten := 0
	for _, m := range meals {
		eaten += m.Calories
	}

	c.HTML(http.StatusOK, "dashboard", pageData(c, gin.H{
		"Goals":          goals,
		"Sessions":       sessions,
		"Meals":          meals,
		"CaloriesBurned": burned,
		"CaloriesEaten":  eaten,
	}))
}

func (h *Handlers) Goals(c *gin.Context) {
	goals, err := clientFor(c, h.clients).Goals(c.Request.Context())
	h.logFetchError(c, "goals", err)
	c.HTML(http.StatusOK, "goals", pageData(c, gin.H{"Goals": goals, "Unavailable": err != nil}))
}

func (h *Handlers) Sessions(c *gin.Context) {
	sessions, err := clientFor(c, h.clients).Sessions(c.Request.Context())
	h.logFetchError(c, "sessions", err)
	c.HTML(http.StatusOK, "sessions", pageData(c, gin.H{"Sessions": sessions, "Unavailable": err != nil}))
}

func (h *Handlers) Nutrition(c *gin.Context) {
	meals, err := clientFor(c, h.clients).Meals(c.Request.Context())
	h.logFetchError(c, "nutrition", err)
	c.HTML(http.StatusOK, "nutrition", pageData(c, gin.H{"Meals": meals, "Unavailable": err != nil}))
}

// formError keeps the API's message for client errors and hides anything
// else behind a generic one.
func (h *Handlers) formError(c *gin.Context, form string, err error) (int, string) {
	var apiErr *session.APIError
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
		return apiErr.Status, apiErr.Message
	}
	h.log.WithFields(c.Request.Context(), logger.Fields{
		"form":   form,
		"action": "form_submit_failed",
	}).Errorf("%s submit failed: %v", form, err)
	return http.StatusBadGateway, "Service indisponible, réessayez plus tard."
}

func (h *Handlers) logFetchError(c *gin.Context, page string, err error) {
	if err == nil {
		return
	}
	h.log.WithFields(c.Request.Context(), logger.Fields{
		"page":   page,
		"action": "page_fetch_failed",
	}).Warnf("%s data fetch failed: %v", page, err)
}
