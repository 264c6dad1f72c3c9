package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	authdto "github.com/trackfit/backend/internal/auth/service/dto"
	"github.com/trackfit/backend/internal/auth/service/mapper"
	"github.com/trackfit/backend/internal/common/clock"
	"github.com/trackfit/backend/internal/common/constants"
	commoncrypto "github.com/trackfit/backend/internal/common/crypto"
	"github.com/trackfit/backend/internal/common/db"
	commonerrors "github.com/trackfit/backend/internal/common/errors"
	"github.com/trackfit/backend/internal/common/logger"
	"github.com/trackfit/backend/internal/common/resilience"
	userdomain "github.com/trackfit/backend/internal/user/domain"
	userrepo "github.com/trackfit/backend/internal/user/repository"
)

const dummyPassword = "trackfit-login-timing-placeholder"

type AuthServiceDeps struct {
	Repo        userrepo.Repository
	Hasher      commoncrypto.PasswordHasher
	IDGenerator commoncrypto.IDGenerator
	Clock       clock.Clock
	Log         *logger.Logger
}

type AuthServiceConfig struct {
	JWTSecret               string
	CircuitBreakerThreshold int32
	CircuitBreakerTimeout   time.Duration
	CircuitBreakerReset     time.Duration
	Retry                   db.RetryConfig
}

type AuthService struct {
	repo        userrepo.Repository
	hasher      commoncrypto.PasswordHasher
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
	log         *logger.Logger
	issuer      *TokenIssuer
	validator   CredentialValidator
	breaker     *resilience.CircuitBreaker
	retry       db.RetryConfig

	dummyOnce sync.Once
	dummy     string
}

func NewAuthService(deps AuthServiceDeps, cfg AuthServiceConfig) *AuthService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = constants.DefaultCircuitBreakerThreshold
	}
	if cfg.CircuitBreakerTimeout <= 0 {
		cfg.CircuitBreakerTimeout = constants.DefaultCircuitBreakerTimeout
	}
	if cfg.CircuitBreakerReset <= 0 {
		cfg.CircuitBreakerReset = constants.DefaultCircuitBreakerReset
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = db.DefaultRetryConfig
	}

	return &AuthService{
		repo:        deps.Repo,
		hasher:      deps.Hasher,
		idGenerator: deps.IDGenerator,
		clock:       clk,
		log:         deps.Log,
		issuer:      NewTokenIssuer(cfg.JWTSecret, deps.IDGenerator, clk),
		validator:   NewCredentialValidator(),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Threshold:  cfg.CircuitBreakerThreshold,
			Timeout:    cfg.CircuitBreakerTimeout,
			ResetAfter: cfg.CircuitBreakerReset,
			Name:       "user_store",
			Logger:     deps.Log,
			Clock:      clk,
			ExpectedErrors: []error{
				userrepo.ErrUserNotFound,
				userrepo.ErrEmailAlreadyExists,
			},
		}),
		retry: cfg.Retry,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     *string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	User  authdto.Profile
	Token string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	s.log.WithFields(ctx, logger.Fields{
		"email":  input.Email,
		"action": "register_attempt",
	}).Info("register attempt")

	if err := s.validator.ValidateRegister(input); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"email":  input.Email,
			"action": "register_validation_failed",
		}).Warnf("register validation failed: %v", err)
		observeRegistration("invalid")
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"email":  input.Email,
			"action": "register_hash_failed",
		}).Errorf("register failed: password hash error: %v", err)
		observeRegistration("error")
		return AuthResult{}, commonerrors.ErrInternal.WithCause(err)
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"email":  input.Email,
			"action": "register_id_generation_failed",
		}).Errorf("register failed: id generation error: %v", err)
		observeRegistration("error")
		return AuthResult{}, commonerrors.ErrInternal.WithCause(err)
	}

	user := userdomain.User{
		ID:           userdomain.ID(id),
		Email:        input.Email,
		PasswordHash: hash,
		Name:         normalizeName(input.Name),
		CreatedAt:    s.clock.Now(),
	}

	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrEmailAlreadyExists) {
			s.log.WithFields(ctx, logger.Fields{
				"email":  input.Email,
				"action": "register_email_exists",
			}).Warn("register failed: email already exists")
			observeRegistration("duplicate")
			return AuthResult{}, ErrDuplicateEmail
		}
		s.log.WithFields(ctx, logger.Fields{
			"email":  input.Email,
			"action": "register_create_failed",
		}).Errorf("register failed: %v", err)
		observeRegistration("error")
		return AuthResult{}, handleCircuitBreakerError(err)
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		observeRegistration("error")
		return AuthResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(user.ID),
		"action":  "register_success",
	}).Info("register success")
	observeRegistration("success")

	return AuthResult{User: mapper.UserToProfile(user), Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	s.log.WithFields(ctx, logger.Fields{
		"email":  input.Email,
		"action": "login_attempt",
	}).Info("login attempt")

	if err := s.validator.ValidateLogin(input); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"email":  input.Email,
			"action": "login_validation_failed",
		}).Warnf("login validation failed: %v", err)
		observeLogin("invalid")
		return AuthResult{}, err
	}

	var user userdomain.User
	err := s.read(ctx, func(ctx context.Context) error {
		found, err := s.repo.FindByEmail(ctx, input.Email)
		if err != nil {
			return err
		}
		user = found
		return nil
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			// Burn one comparison so unknown emails cost the same as wrong passwords.
			_ = s.hasher.Compare(s.dummyHash(), input.Password)
			s.log.WithFields(ctx, logger.Fields{
				"email":  input.Email,
				"action": "login_user_not_found",
			}).Warn("login failed: not found")
			observeLogin("invalid_credentials")
			return AuthResult{}, ErrInvalidCredentials
		}
		s.log.WithFields(ctx, logger.Fields{
			"email":  input.Email,
			"action": "login_fetch_failed",
		}).Errorf("login failed: %v", err)
		observeLogin("error")
		return AuthResult{}, handleCircuitBreakerError(err)
	}

	if err := s.hasher.Compare(user.PasswordHash, input.Password); err != nil {
		if errors.Is(err, commoncrypto.ErrPasswordMismatch) {
			s.log.WithFields(ctx, logger.Fields{
				"email":  input.Email,
				"action": "login_invalid_password",
			}).Warn("login failed: invalid password")
			observeLogin("invalid_credentials")
			return AuthResult{}, ErrInvalidCredentials
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "login_compare_failed",
		}).Errorf("login failed: hash compare error: %v", err)
		observeLogin("error")
		return AuthResult{}, commonerrors.ErrInternal.WithCause(err)
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		observeLogin("error")
		return AuthResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(user.ID),
		"action":  "login_success",
	}).Info("login success")
	observeLogin("success")

	return AuthResult{User: mapper.UserToProfile(user), Token: token}, nil
}

// GetProfile resolves the subject of an already verified token.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (authdto.Profile, error) {
	var user userdomain.User
	err := s.read(ctx, func(ctx context.Context) error {
		found, err := s.repo.FindByID(ctx, userdomain.ID(userID))
		if err != nil {
			return err
		}
		user = found
		return nil
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			s.log.WithFields(ctx, logger.Fields{
				"user_id": userID,
				"action":  "profile_user_not_found",
			}).Warn("profile lookup failed: user not found")
			return authdto.Profile{}, commonerrors.ErrUserNotFound
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"action":  "profile_fetch_failed",
		}).Errorf("profile lookup failed: %v", err)
		return authdto.Profile{}, handleCircuitBreakerError(err)
	}

	return mapper.UserToProfile(user), nil
}

func (s *AuthService) issueToken(ctx context.Context, userID userdomain.ID) (string, error) {
	token, jti, err := s.issuer.Issue(userID)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(userID),
			"action":  "token_issue_failed",
		}).Errorf("token issue failed: %v", err)
		return "", commonerrors.ErrInternal.WithCause(err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(userID),
		"jti":     jti,
		"action":  "token_issued",
	}).Debug("access token issued")
	return token, nil
}

func (s *AuthService) read(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.breaker.Call(ctx, func(ctx context.Context) error {
		return db.RetryWithBackoff(ctx, s.log, s.retry, func() error {
			return fn(ctx)
		})
	})
}

func (s *AuthService) dummyHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err == nil {
			s.dummy = hash
		}
	})
	return s.dummy
}

func normalizeName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
