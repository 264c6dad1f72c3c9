package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trackfit/backend/internal/auth/service"
	authdto "github.com/trackfit/backend/internal/auth/service/dto"
	commonerrors "github.com/trackfit/backend/internal/common/errors"
	commonhttp "github.com/trackfit/backend/internal/common/http"
	"github.com/trackfit/backend/internal/common/jwtverify"
	"github.com/trackfit/backend/internal/common/logger"
)

type AuthService interface {
	Register(ctx context.Context, input service.RegisterInput) (service.AuthResult, error)
	Login(ctx context.Context, input service.LoginInput) (service.AuthResult, error)
	GetProfile(ctx context.Context, userID string) (authdto.Profile, error)
}

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  authdto.Profile `json:"user"`
	Token string          `json:"token"`
}

type profileResponse struct {
	User authdto.Profile `json:"user"`
}

type Handler struct {
	auth     AuthService
	verifier jwtverify.TokenVerifier
	errs     *commonhttp.ErrorHandler
	log      *logger.Logger
	timeout  time.Duration
}

func NewHandler(auth AuthService, verifier jwtverify.TokenVerifier, log *logger.Logger, timeout time.Duration) *Handler {
	return &Handler{
		auth:     auth,
		verifier: verifier,
		errs:     commonhttp.NewErrorHandler(log),
		log:      log,
		timeout:  timeout,
	}
}

// Routes is meant to be mounted under /auth.
func (h *Handler) Routes() chi.Router {
	withTimeout := commonhttp.WithTimeout(h.timeout)

	r := chi.NewRouter()
	r.NotFound(commonhttp.NotFoundHandler)
	r.MethodNotAllowed(commonhttp.MethodNotAllowedHandler)

	r.Post("/register", withTimeout(h.register))
	r.Post("/login", withTimeout(h.login))
	r.With(jwtverify.Middleware(h.verifier, h.log)).Get("/me", withTimeout(h.me))
	return r
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"action": "register_invalid_json",
		}).Warnf("register failed: %v", err)
		h.errs.HandleError(w, r, err)
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, authResponse{User: result.User, Token: result.Token})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"action": "login_invalid_json",
		}).Warnf("login failed: %v", err)
		h.errs.HandleError(w, r, err)
		return
	}

	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, authResponse{User: result.User, Token: result.Token})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwtverify.FromContext(r.Context())
	if !ok {
		h.errs.HandleError(w, r, commonerrors.ErrMissingToken)
		return
	}

	profile, err := h.auth.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, profileResponse{User: profile})
}
