package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadAPIConfig_MissingSecretFailsLoudly(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/trackfit")

	_, err := LoadAPIConfig()
	require.ErrorIs(t, err, ErrMissingRequiredEnv)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadAPIConfig_ShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")
	t.Setenv("DATABASE_URL", "postgres://localhost/trackfit")

	_, err := LoadAPIConfig()
	require.ErrorIs(t, err, ErrInvalidJWTSecret)
}

func TestLoadAPIConfig_MissingDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "")

	_, err := LoadAPIConfig()
	require.ErrorIs(t, err, ErrMissingRequiredEnv)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadAPIConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "postgres://localhost/trackfit")

	cfg, err := LoadAPIConfig()
	require.NoError(t, err)

	assert.Equal(t, "3030", cfg.HTTPPort)
	assert.Equal(t, int32(20), cfg.DBMaxConns)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.MigrateOnStart)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadAPIConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "postgres://localhost/trackfit")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("REQUEST_TIMEOUT", "2s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.5, 172.18.0.0/16")

	cfg, err := LoadAPIConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"10.0.0.5", "172.18.0.0/16"}, cfg.TrustedProxies)
}

func TestLoadAPIConfig_BadTrustedProxy(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "postgres://localhost/trackfit")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.5,web-frontend")

	_, err := LoadAPIConfig()
	require.ErrorIs(t, err, ErrInvalidProxy)
	assert.Contains(t, err.Error(), "web-frontend")
}

func TestLoadWebConfig(t *testing.T) {
	t.Setenv("CSRF_KEY", strings.Repeat("k", 32))
	t.Setenv("API_BASE_URL", "http://api:3030/")

	cfg, err := LoadWebConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.HTTPPort)
	assert.Equal(t, "http://api:3030", cfg.APIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.GuardTimeout)
}

func TestLoadWebConfig_BadCSRFKey(t *testing.T) {
	t.Setenv("CSRF_KEY", "short")

	_, err := LoadWebConfig()
	require.ErrorIs(t, err, ErrInvalidCSRFKey)
}
