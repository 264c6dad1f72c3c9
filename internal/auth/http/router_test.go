package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trackfit/backend/internal/auth/service"
	"github.com/trackfit/backend/internal/common/clock"
	commoncrypto "github.com/trackfit/backend/internal/common/crypto"
	commonhttp "github.com/trackfit/backend/internal/common/http"
	"github.com/trackfit/backend/internal/common/jwtverify"
	"github.com/trackfit/backend/internal/common/logger"
	userdomain "github.com/trackfit/backend/internal/user/domain"
	userrepo "github.com/trackfit/backend/internal/user/repository"
)

const testSecret = "test-secret-that-is-at-least-32-bytes!"

type testServer struct {
	router http.Handler
	repo   *userrepo.MemoryRepository
	clock  *clock.MockClock
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	log, err := logger.New("", "test", "error")
	require.NoError(t, err)

	repo := userrepo.NewMemoryRepository()
	mockClock := clock.NewMockClock(time.Now().Truncate(time.Second))
	svc := service.NewAuthService(service.AuthServiceDeps{
		Repo:        repo,
		Hasher:      commoncrypto.NewBcryptHasher(bcrypt.MinCost),
		IDGenerator: commoncrypto.NewUUIDGenerator(),
		Clock:       mockClock,
		Log:         log,
	}, service.AuthServiceConfig{JWTSecret: testSecret})

	handler := NewHandler(svc, jwtverify.NewVerifier(testSecret, mockClock), log, 5*time.Second)

	r := chi.NewRouter()
	r.Mount("/auth", handler.Routes())
	return testServer{router: r, repo: repo, clock: mockClock}
}

func (s testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) authResponse {
	t.Helper()
	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) commonhttp.ErrorEnvelope {
	t.Helper()
	var env commonhttp.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRegisterThenMe(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email":    "a@b.com",
		"password": "secret123",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	registered := decodeAuth(t, rec)
	assert.Equal(t, "a@b.com", registered.User.Email)
	assert.NotEmpty(t, registered.User.ID)
	assert.NotEmpty(t, registered.Token)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = srv.do(t, http.MethodGet, "/auth/me", nil, registered.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var me profileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, registered.User.ID, me.User.ID)
	assert.Equal(t, "a@b.com", me.User.Email)
}

func TestRegisterThenLogin(t *testing.T) {
	srv := newTestServer(t)
	creds := map[string]string{"email": "a@b.com", "password": "secret123", "name": "Ann"}

	rec := srv.do(t, http.MethodPost, "/auth/register", creds, "")
	require.Equal(t, http.StatusOK, rec.Code)
	registered := decodeAuth(t, rec)
	require.NotNil(t, registered.User.Name)
	assert.Equal(t, "Ann", *registered.User.Name)

	rec = srv.do(t, http.MethodPost, "/auth/login", creds, "")
	require.Equal(t, http.StatusOK, rec.Code)
	loggedIn := decodeAuth(t, rec)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)
	assert.NotEmpty(t, loggedIn.Token)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	creds := map[string]string{"email": "a@b.com", "password": "secret123"}

	first := srv.do(t, http.MethodPost, "/auth/register", creds, "")
	require.Equal(t, http.StatusOK, first.Code)
	firstToken := decodeAuth(t, first).Token

	rec := srv.do(t, http.MethodPost, "/auth/register", creds, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "DUPLICATE_EMAIL", decodeEnvelope(t, rec).Code)

	rec = srv.do(t, http.MethodGet, "/auth/me", nil, firstToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email": "a@b.com", "password": "secret123",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	wrongPassword := srv.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "a@b.com", "password": "wrong-pass",
	}, "")
	unknownEmail := srv.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "nobody@b.com", "password": "secret123",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Code, unknownEmail.Code)

	a, b := decodeEnvelope(t, wrongPassword), decodeEnvelope(t, unknownEmail)
	assert.Equal(t, "INVALID_CREDENTIALS", a.Code)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Message, b.Message)
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email": "not-an-email", "password": "secret123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_EMAIL", decodeEnvelope(t, rec).Code)

	rec = srv.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email": "a@b.com", "password": "short",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_PASSWORD_LENGTH", decodeEnvelope(t, rec).Code)
}

func TestInvalidJSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decodeEnvelope(t, rec).Code)
}

func TestMe_Unauthorized(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", decodeEnvelope(t, rec).Code)

	rec = srv.do(t, http.MethodGet, "/auth/me", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeEnvelope(t, rec).Code)
}

func TestMe_ExpiredToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email": "a@b.com", "password": "secret123",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decodeAuth(t, rec).Token

	srv.clock.Advance(7*24*time.Hour + time.Second)

	rec = srv.do(t, http.MethodGet, "/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeEnvelope(t, rec).Code)
}

func TestMe_DeletedUser(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email": "a@b.com", "password": "secret123",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	registered := decodeAuth(t, rec)

	srv.repo.Delete(userdomain.ID(registered.User.ID))

	rec = srv.do(t, http.MethodGet, "/auth/me", nil, registered.Token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "USER_NOT_FOUND", decodeEnvelope(t, rec).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/auth/login", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
