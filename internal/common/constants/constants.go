package constants

import "time"

const (
	PasswordMinLength  = 8
	PasswordMaxLength  = 72
	EmailMaxLength     = 254
	NameMaxLength      = 100
	JWTSecretMinLength = 32
	CSRFKeyLength      = 32

	DefaultBcryptCost = 10

	AccessTokenTTL = 7 * 24 * time.Hour

	TokenCookieName = "token"

	DefaultMaxRequestSize = 1 << 20

	DBPoolMaxConns        = 20
	DBPoolMinConns        = 2
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second
	DBQueryTimeout        = 10 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	DefaultAPIHTTPPort = "3030"
	DefaultWebHTTPPort = "3000"
	DefaultAPIBaseURL  = "http://localhost:3030"
	DefaultCORSOrigin  = "http://localhost:3000"

	DefaultCircuitBreakerThreshold = 50
	DefaultCircuitBreakerTimeout   = 10 * time.Second
	DefaultCircuitBreakerReset     = 10 * time.Second

	DefaultRequestTimeout = 5 * time.Second
	DefaultGuardTimeout   = 5 * time.Second
	DefaultClientTimeout  = 10 * time.Second

	RateLimitCleanupInterval           = 5 * time.Minute
	RateLimitLoginRequestsPerSecond    = 1.0
	RateLimitLoginBurst                = 5
	RateLimitRegisterRequestsPerSecond = 0.5
	RateLimitRegisterBurst             = 3
	RateLimitGeneralRequestsPerSecond  = 20.0
	RateLimitGeneralBurst              = 40
	RateLimitRedisWindow               = time.Minute

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
	DefaultLogDir    = "/var/log/trackfit"
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
