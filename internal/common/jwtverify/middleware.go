package jwtverify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trackfit/backend/internal/common/clock"
	commonerrors "github.com/trackfit/backend/internal/common/errors"
	commonhttp "github.com/trackfit/backend/internal/common/http"
	"github.com/trackfit/backend/internal/common/logger"
	"github.com/trackfit/backend/internal/observability/metrics"
)

type Claims struct {
	UserID    string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenVerifier interface {
	Verify(tokenString string) (Claims, error)
}

type contextKey string

const claimsKey contextKey = "jwt_claims"

type Verifier struct {
	secret []byte
	clock  clock.Clock
	parser *jwt.Parser
}

func NewVerifier(secret string, clk clock.Clock) *Verifier {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &Verifier{
		secret: []byte(secret),
		clock:  clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(clk.Now),
			jwt.WithStrictDecoding(),
		),
	}
}

// Verify checks signature and expiry. Every rejection wraps
// commonerrors.ErrInvalidToken.
func (v *Verifier) Verify(tokenString string) (Claims, error) {
	metrics.JWTValidationsTotal.Inc()

	registered := &jwt.RegisteredClaims{}
	parsed, err := v.parser.ParseWithClaims(tokenString, registered, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		metrics.JWTValidationsFailed.Inc()
		return Claims{}, fmt.Errorf("%w: %v", commonerrors.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		metrics.JWTValidationsFailed.Inc()
		return Claims{}, fmt.Errorf("%w: token is not valid", commonerrors.ErrInvalidToken)
	}
	if registered.Subject == "" {
		metrics.JWTValidationsFailed.Inc()
		return Claims{}, fmt.Errorf("%w: missing sub claim", commonerrors.ErrInvalidToken)
	}

	claims := Claims{
		UserID: registered.Subject,
		JTI:    registered.ID,
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}

func Middleware(verifier TokenVerifier, log *logger.Logger) func(next http.Handler) http.Handler {
	errorHandler := commonhttp.NewErrorHandler(log)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenString, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				log.WithFields(ctx, logger.Fields{
					"path":   r.URL.Path,
					"action": "jwt_auth_rejected",
				}).Warnf("jwt auth failed: %v", err)
				errorHandler.HandleError(w, r, err)
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				if errors.Is(err, commonerrors.ErrInvalidToken) {
					log.WithFields(ctx, logger.Fields{
						"path":   r.URL.Path,
						"action": "jwt_auth_invalid",
					}).Warnf("jwt auth failed: %v", err)
					errorHandler.HandleError(w, r, commonerrors.ErrInvalidToken.
						WithCause(err).
						WithDetails(map[string]any{"reason": err.Error()}))
					return
				}

				log.WithFields(ctx, logger.Fields{
					"path":   r.URL.Path,
					"action": "jwt_auth_internal_error",
				}).Errorf("jwt verification error: %v", err)
				errorHandler.HandleError(w, r, commonerrors.ErrInternal.WithCause(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

func bearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) == 0 {
		return "", commonerrors.ErrMissingToken
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", commonerrors.ErrInvalidToken.WithDetails(map[string]any{"reason": "unsupported authorization scheme"})
	}
	if len(parts) == 1 {
		return "", commonerrors.ErrMissingToken
	}
	if len(parts) > 2 {
		return "", commonerrors.ErrInvalidToken.WithDetails(map[string]any{"reason": "malformed authorization header"})
	}
	return parts[1], nil
}

func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func FromContext(ctx context.Context) (Claims, bool) {
	val := ctx.Value(claimsKey)
	claims, ok := val.(Claims)
	return claims, ok
}
