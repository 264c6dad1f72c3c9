package session

import (
	"net/http"
	"sync"

	"github.com/trackfit/backend/internal/common/constants"
)

type TokenSource interface {
	Token() string
}

type TokenStore interface {
	TokenSource
	SetToken(token string)
	Clear()
}

type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryStore) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *MemoryStore) Clear() {
	s.SetToken("")
}

// CookieStore reads the token cookie from the incoming request and writes
// changes to the response. A write is visible to later reads of the same
// store even though the request still carries the old cookie.
type CookieStore struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool

	mu      sync.Mutex
	changed bool
	token   string
}

func NewCookieStore(w http.ResponseWriter, r *http.Request, secure bool) *CookieStore {
	return &CookieStore{w: w, r: r, secure: secure}
}

func (s *CookieStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.changed {
		return s.token
	}
	cookie, err := s.r.Cookie(constants.TokenCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *CookieStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.changed = true
	s.token = token
	http.SetCookie(s.w, s.cookie(token, int(constants.AccessTokenTTL.Seconds())))
}

func (s *CookieStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.changed = true
	s.token = ""
	http.SetCookie(s.w, s.cookie("", -1))
}

func (s *CookieStore) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     constants.TokenCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Session mirrors a persistent store into memory. Reads prefer memory and
// fall back to the persistent store, writes go to both.
type Session struct {
	memory     *MemoryStore
	persistent TokenStore
}

func NewSession(persistent TokenStore) *Session {
	return &Session{memory: NewMemoryStore(), persistent: persistent}
}

func (s *Session) Token() string {
	if token := s.memory.Token(); token != "" {
		return token
	}
	token := s.persistent.Token()
	if token != "" {
		s.memory.SetToken(token)
	}
	return token
}

func (s *Session) SetToken(token string) {
	s.memory.SetToken(token)
	s.persistent.SetToken(token)
}

func (s *Session) Clear() {
	s.memory.Clear()
	s.persistent.Clear()
}
