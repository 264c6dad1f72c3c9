package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	commonhttp "github.com/trackfit/backend/internal/common/http"
	fitnessdomain "github.com/trackfit/backend/internal/fitness/domain"
	"github.com/trackfit/backend/internal/observability/metrics"
)

type User struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

// DisplayName falls back to the email when no name was given.
func (u User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}

type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type authResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type profileResponse struct {
	User User `json:"user"`
}

type Client struct {
	baseURL      string
	http         *http.Client
	tokens       TokenStore
	forwardedFor string
}

func NewClient(baseURL string, timeout time.Duration, base http.RoundTripper, tokens TokenStore) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &BearerTransport{Base: base, Tokens: tokens},
		},
		tokens: tokens,
	}
}

// ForwardFor sends ip as X-Forwarded-For so the API rate limits each
// browser separately when this host is one of its trusted proxies.
func (c *Client) ForwardFor(ip string) *Client {
	c.forwardedFor = ip
	return c
}

func (c *Client) Register(ctx context.Context, email, password string, name *string) (User, error) {
	body := map[string]any{"email": email, "password": password}
	if name != nil {
		body["name"] = *name
	}

	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &resp); err != nil {
		return User{}, err
	}
	c.tokens.SetToken(resp.Token)
	return resp.User, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return User{}, err
	}
	c.tokens.SetToken(resp.Token)
	return resp.User, nil
}

// Logout only forgets the token. The API keeps no session to end.
func (c *Client) Logout() {
	c.tokens.Clear()
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var resp profileResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

func (c *Client) Goals(ctx context.Context) ([]fitnessdomain.Goal, error) {
	var goals []fitnessdomain.Goal
	err := c.do(ctx, http.MethodGet, "/goals", nil, &goals)
	return goals, err
}

func (c *Client) Meals(ctx context.Context) ([]fitnessdomain.Meal, error) {
	var meals []fitnessdomain.Meal
	err := c.do(ctx, http.MethodGet, "/nutrition", nil, &meals)
	return meals, err
}

func (c *Client) Sessions(ctx context.Context) ([]fitnessdomain.Session, error) {
	var sessions []fitnessdomain.Session
	err := c.do(ctx, http.MethodGet, "/sessions", nil, &sessions)
	return sessions, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", c.forwardedFor)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.APIClientRequestDurationSeconds.WithLabelValues(method, path, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	metrics.APIClientRequestDurationSeconds.WithLabelValues(method, path, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var env commonhttp.ErrorEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env); err == nil {
		apiErr.Code = env.Code
		if env.Message != "" {
			apiErr.Message = env.Message
		}
	}
	return apiErr
}
