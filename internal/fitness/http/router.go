package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	commonhttp "github.com/trackfit/backend/internal/common/http"
	"github.com/trackfit/backend/internal/common/logger"
	"github.com/trackfit/backend/internal/fitness/domain"
)

type FitnessService interface {
	ListGoals(ctx context.Context) ([]domain.Goal, error)
	GetGoal(ctx context.Context, id string) (domain.Goal, error)
	ListMeals(ctx context.Context) ([]domain.Meal, error)
	GetMeal(ctx context.Context, id string) (domain.Meal, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	GetSession(ctx context.Context, id string) (domain.Session, error)
}

type Handler struct {
	svc     FitnessService
	errs    *commonhttp.ErrorHandler
	timeout time.Duration
}

func NewHandler(svc FitnessService, log *logger.Logger, timeout time.Duration) *Handler {
	return &Handler{svc: svc, errs: commonhttp.NewErrorHandler(log), timeout: timeout}
}

// Register adds the read routes to r. They carry no auth middleware; the
// web frontend guards its own pages.
func (h *Handler) Register(r chi.Router) {
	withTimeout := commonhttp.WithTimeout(h.timeout)

	r.Get("/goals", withTimeout(listHandler(h, h.svc.ListGoals)))
	r.Get("/goals/{id}", withTimeout(getHandler(h, h.svc.GetGoal)))
	r.Get("/nutrition", withTimeout(listHandler(h, h.svc.ListMeals)))
	r.Get("/nutrition/{id}", withTimeout(getHandler(h, h.svc.GetMeal)))
	r.Get("/sessions", withTimeout(listHandler(h, h.svc.ListSessions)))
	r.Get("/sessions/{id}", withTimeout(getHandler(h, h.svc.GetSession)))
}

func listHandler[T any](h *Handler, fetch func(context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := fetch(r.Context())
		if err != nil {
			h.errs.HandleError(w, r, err)
			return
		}
		commonhttp.WriteJSON(w, http.StatusOK, items)
	}
}

func getHandler[T any](h *Handler, fetch func(context.Context, string) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := fetch(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			h.errs.HandleError(w, r, err)
			return
		}
		commonhttp.WriteJSON(w, http.StatusOK, item)
	}
}
