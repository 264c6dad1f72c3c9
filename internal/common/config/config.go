package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/trackfit/backend/internal/common/constants"
)

var (
	ErrMissingRequiredEnv = errors.New("missing required environment variable")
	ErrInvalidJWTSecret   = errors.New("JWT_SECRET must be at least 32 bytes")
	ErrInvalidCSRFKey     = errors.New("CSRF_KEY must be exactly 32 bytes")
	ErrInvalidProxy       = errors.New("TRUSTED_PROXIES entries must be IPs or CIDR ranges")
)

type APIConfig struct {
	HTTPPort                string
	DatabaseURL             string
	DBMaxConns              int32
	JWTSecret               string
	BcryptCost              int
	RequestTimeout          time.Duration
	CORSAllowedOrigins      []string
	TrustedProxies          []string
	RedisAddr               string
	RedisPassword           string
	MigrateOnStart          bool
	CircuitBreakerThreshold int32
	CircuitBreakerTimeout   time.Duration
	CircuitBreakerReset     time.Duration
	LogDir                  string
	LogLevel                string
}

type WebConfig struct {
	HTTPPort      string
	APIBaseURL    string
	CSRFKey       string
	SecureCookies bool
	GuardTimeout  time.Duration
	ClientTimeout time.Duration
	LogDir        string
	LogLevel      string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

func LoadAPIConfig() (APIConfig, error) {
	v := newViper()
	v.SetDefault("HTTP_PORT", constants.DefaultAPIHTTPPort)
	v.SetDefault("DB_MAX_CONNS", constants.DBPoolMaxConns)
	v.SetDefault("BCRYPT_COST", constants.DefaultBcryptCost)
	v.SetDefault("REQUEST_TIMEOUT", constants.DefaultRequestTimeout)
	v.SetDefault("CORS_ALLOWED_ORIGINS", constants.DefaultCORSOrigin)
	v.SetDefault("MIGRATE_ON_START", true)
	v.SetDefault("CIRCUIT_BREAKER_THRESHOLD", constants.DefaultCircuitBreakerThreshold)
	v.SetDefault("CIRCUIT_BREAKER_TIMEOUT", constants.DefaultCircuitBreakerTimeout)
	v.SetDefault("CIRCUIT_BREAKER_RESET", constants.DefaultCircuitBreakerReset)
	v.SetDefault("LOG_LEVEL", "info")

	jwtSecret, err := mustString(v, "JWT_SECRET")
	if err != nil {
		return APIConfig{}, err
	}
	if err := validateJWTSecret(jwtSecret); err != nil {
		return APIConfig{}, err
	}

	databaseURL, err := mustString(v, "DATABASE_URL")
	if err != nil {
		return APIConfig{}, err
	}

	trustedProxies := splitList(v.GetString("TRUSTED_PROXIES"))
	if err := validateProxies(trustedProxies); err != nil {
		return APIConfig{}, err
	}

	return APIConfig{
		HTTPPort:                v.GetString("HTTP_PORT"),
		DatabaseURL:             databaseURL,
		DBMaxConns:              v.GetInt32("DB_MAX_CONNS"),
		JWTSecret:               jwtSecret,
		BcryptCost:              v.GetInt("BCRYPT_COST"),
		RequestTimeout:          v.GetDuration("REQUEST_TIMEOUT"),
		CORSAllowedOrigins:      splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		TrustedProxies:          trustedProxies,
		RedisAddr:               v.GetString("REDIS_ADDR"),
		RedisPassword:           v.GetString("REDIS_PASSWORD"),
		MigrateOnStart:          v.GetBool("MIGRATE_ON_START"),
		CircuitBreakerThreshold: v.GetInt32("CIRCUIT_BREAKER_THRESHOLD"),
		CircuitBreakerTimeout:   v.GetDuration("CIRCUIT_BREAKER_TIMEOUT"),
		CircuitBreakerReset:     v.GetDuration("CIRCUIT_BREAKER_RESET"),
		LogDir:                  v.GetString("LOG_DIR"),
		LogLevel:                v.GetString("LOG_LEVEL"),
	}, nil
}

func LoadWebConfig() (WebConfig, error) {
	v := newViper()
	v.SetDefault("WEB_HTTP_PORT", constants.DefaultWebHTTPPort)
	v.SetDefault("API_BASE_URL", constants.DefaultAPIBaseURL)
	v.SetDefault("SECURE_COOKIES", false)
	v.SetDefault("GUARD_TIMEOUT", constants.DefaultGuardTimeout)
	v.SetDefault("CLIENT_TIMEOUT", constants.DefaultClientTimeout)
	v.SetDefault("LOG_LEVEL", "info")

	csrfKey, err := mustString(v, "CSRF_KEY")
	if err != nil {
		return WebConfig{}, err
	}
	if len(csrfKey) != constants.CSRFKeyLength {
		return WebConfig{}, fmt.Errorf("%w: got %d bytes", ErrInvalidCSRFKey, len(csrfKey))
	}

	return WebConfig{
		HTTPPort:      v.GetString("WEB_HTTP_PORT"),
		APIBaseURL:    strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		CSRFKey:       csrfKey,
		SecureCookies: v.GetBool("SECURE_COOKIES"),
		GuardTimeout:  v.GetDuration("GUARD_TIMEOUT"),
		ClientTimeout: v.GetDuration("CLIENT_TIMEOUT"),
		LogDir:        v.GetString("LOG_DIR"),
		LogLevel:      v.GetString("LOG_LEVEL"),
	}, nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidJWTSecret, len(secret))
	}
	return nil
}

func validateProxies(entries []string) error {
	for _, entry := range entries {
		if _, _, err := net.ParseCIDR(entry); err == nil {
			continue
		}
		if net.ParseIP(entry) == nil {
			return fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
		}
	}
	return nil
}

func mustString(v *viper.Viper, key string) (string, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingRequiredEnv, key)
	}
	return value, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
