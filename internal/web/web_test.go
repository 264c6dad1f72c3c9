package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackfit/backend/internal/common/logger"
	fitnessdomain "github.com/trackfit/backend/internal/fitness/domain"
	"github.com/trackfit/backend/internal/web/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testCSRFKey = []byte("0123456789abcdef0123456789abcdef")

type stubClient struct {
	meFunc    func(ctx context.Context) (session.User, error)
	loginFunc func(ctx context.Context, email, password string) (session.User, error)
	meCalls   *atomic.Int32
	loggedOut *atomic.Int32
}

func (s *stubClient) Register(ctx context.Context, email, password string, name *string) (session.User, error) {
	return session.User{ID: "u1", Email: email, Name: name}, nil
}

func (s *stubClient) Login(ctx context.Context, email, password string) (session.User, error) {
	if s.loginFunc != nil {
		return s.loginFunc(ctx, email, password)
	}
	return session.User{ID: "u1", Email: email}, nil
}

func (s *stubClient) Logout() {
	s.loggedOut.Add(1)
}

func (s *stubClient) Me(ctx context.Context) (session.User, error) {
	s.meCalls.Add(1)
	if s.meFunc != nil {
		return s.meFunc(ctx)
	}
	return session.User{ID: "u1", Email: "a@b.com"}, nil
}

func (s *stubClient) Goals(ctx context.Context) ([]fitnessdomain.Goal, error) {
	return []fitnessdomain.Goal{{ID: "g1", Title: "Musculation", Duration: 60}}, nil
}

func (s *stubClient) Meals(ctx context.Context) ([]fitnessdomain.Meal, error) {
	return []fitnessdomain.Meal{{ID: "m1", Name: "Dîner", Day: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), Calories: 500}}, nil
}

func (s *stubClient) Sessions(ctx context.Context) ([]fitnessdomain.Session, error) {
	return []fitnessdomain.Session{{ID: "s1", Date: time.Date(2025, 2, 10, 18, 30, 0, 0, time.UTC), Calories: 300}}, nil
}

func newStub() *stubClient {
	return &stubClient{meCalls: &atomic.Int32{}, loggedOut: &atomic.Int32{}}
}

func newTestRouter(t *testing.T, stub *stubClient, guardTimeout time.Duration) *gin.Engine {
	t.Helper()
	log, err := logger.New("", "test", "error")
	require.NoError(t, err)

	router, err := NewRouter(RouterConfig{
		Clients:      func(c *gin.Context) APIClient { return stub },
		CSRFKey:      testCSRFKey,
		GuardTimeout: guardTimeout,
		Log:          log,
	})
	require.NoError(t, err)
	return router
}

func TestParseTemplates(t *testing.T) {
	tmpl, err := ParseTemplates()
	require.NoError(t, err)
	for _, name := range []string{"index", "login", "signup", "loading", "dashboard", "goals", "sessions", "nutrition"} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}
}

func TestGuard_AllowsAuthenticatedUser(t *testing.T) {
	stub := newStub()
	router := newTestRouter(t, stub, time.Second)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me/dashboard", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bonjour a@b.com")
	assert.Contains(t, rec.Body.String(), "300 kcal")
	assert.Equal(t, int32(1), stub.meCalls.Load(), "exactly one profile check per page load")
}

func TestGuard_RedirectsUnauthorized(t *testing.T) {
	stub := newStub()
	stub.meFunc = func(ctx context.Context) (session.User, error) {
		return session.User{}, &session.APIError{Status: http.StatusUnauthorized, Code: "MISSING_TOKEN"}
	}
	router := newTestRouter(t, stub, time.Second)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me/goals", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestGuard_RedirectsOnOtherFailures(t *testing.T) {
	stub := newStub()
	stub.meFunc = func(ctx context.Context) (session.User, error) {
		return session.User{}, &session.APIError{Status: http.StatusNotFound, Code: "USER_NOT_FOUND"}
	}
	router := newTestRouter(t, stub, time.Second)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me/sessions", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestGuard_CancelledRequestRendersNothing(t *testing.T) {
	stub := newStub()
	stub.meFunc = func(ctx context.Context) (session.User, error) {
		<-ctx.Done()
		return session.User{}, ctx.Err()
	}
	router := newTestRouter(t, stub, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/me/dashboard", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestGuard_SlowAPIShowsLoadingPage(t *testing.T) {
	stub := newStub()
	stub.meFunc = func(ctx context.Context) (session.User, error) {
		<-ctx.Done()
		return session.User{}, ctx.Err()
	}
	router := newTestRouter(t, stub, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me/nutrition", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Chargement...")
	assert.Contains(t, rec.Body.String(), `http-equiv="refresh"`)
}

var csrfInput = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

// formSession fetches a form page and returns what a browser would send back.
func formSession(t *testing.T, router http.Handler, path string) (string, []*http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	match := csrfInput.FindStringSubmatch(rec.Body.String())
	require.Len(t, match, 2, "csrf field missing from form")
	return match[1], rec.Result().Cookies()
}

func postForm(router http.Handler, path, token string, cookies []*http.Cookie, values url.Values) *httptest.ResponseRecorder {
	if token != "" {
		values.Set("gorilla.csrf.Token", token)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	stub := newStub()
	router := newTestRouter(t, stub, time.Second)

	token, cookies := formSession(t, router, "/login")
	rec := postForm(router, "/login", token, cookies, url.Values{
		"email":    {"a@b.com"},
		"password": {"secret123"},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/me/dashboard", rec.Header().Get("Location"))
}

func TestLogin_FailureRerendersWithMessage(t *testing.T) {
	stub := newStub()
	stub.loginFunc = func(ctx context.Context, email, password string) (session.User, error) {
		return session.User{}, &session.APIError{
			Status:  http.StatusUnauthorized,
			Code:    "INVALID_CREDENTIALS",
			Message: "invalid email or password",
		}
	}
	router := newTestRouter(t, stub, time.Second)

	token, cookies := formSession(t, router, "/login")
	rec := postForm(router, "/login", token, cookies, url.Values{
		"email":    {"a@b.com"},
		"password": {"wrong"},
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")
	assert.Contains(t, rec.Body.String(), `value="a@b.com"`)
}

func TestLogin_RejectsMissingCSRFToken(t *testing.T) {
	stub := newStub()
	called := false
	stub.loginFunc = func(ctx context.Context, email, password string) (session.User, error) {
		called = true
		return session.User{}, nil
	}
	router := newTestRouter(t, stub, time.Second)

	rec := postForm(router, "/login", "", nil, url.Values{
		"email":    {"a@b.com"},
		"password": {"secret123"},
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
}

func TestLogout_ClearsSession(t *testing.T) {
	stub := newStub()
	router := newTestRouter(t, stub, time.Second)

	token, cookies := formSession(t, router, "/login")
	rec := postForm(router, "/logout", token, cookies, url.Values{})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, int32(1), stub.loggedOut.Load())
}

type captureTransport struct {
	forwardedFor []string
}

func (ct *captureTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ct.forwardedFor = append(ct.forwardedFor, r.Header.Get("X-Forwarded-For"))
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`[]`)),
		Request:    r,
	}, nil
}

func TestClientFactory_ForwardsBrowserAddress(t *testing.T) {
	transport := &captureTransport{}
	factory := NewClientFactory("http://api.test", time.Second, transport, false)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/goals", nil)
	c.Request.RemoteAddr = "198.51.100.23:51000"
	c.Request.Header.Set("X-Forwarded-For", "1.1.1.1")

	_, err := factory(c).Goals(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"198.51.100.23"}, transport.forwardedFor)
}
