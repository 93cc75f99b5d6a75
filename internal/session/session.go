// Package session keeps per-visitor key/value state in a signed cookie.
// The values travel inside an HS256 JWT, so they are readable by the
// client but cannot be altered without the signing key.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/rango/internal/logger"
)

// Store is a per-request key/value session.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	Clear()
}

// Session is the Store kept in the request context by Manager.Middleware.
type Session struct {
	mu     sync.Mutex
	values map[string]string
	dirty  bool
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{values: map[string]string{}}
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[key]
	return value, ok
}

// Set stores value under key.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.values[key]; ok && current == value {
		return
	}
	s.values[key] = value
	s.dirty = true
}

// Delete removes key from the session.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Clear removes every key from the session.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.values) == 0 {
		return
	}
	s.values = map[string]string{}
	s.dirty = true
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dirty
}

func (s *Session) snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make(map[string]string, len(s.values))
	for key, value := range s.values {
		values[key] = value
	}

	return values
}

// Claims is the JWT payload of the session cookie.
type Claims struct {
	jwt.RegisteredClaims
	Values map[string]string `json:"values"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// SessionKey is the context key of the request session.
const SessionKey ContextKey = "session"

// Manager loads sessions from and saves them to cookies.
type Manager struct {
	cookieName string
	secretKey  []byte
	maxAge     time.Duration
}

// NewManager creates a Manager writing cookies named cookieName,
// signed with secretKey and valid for maxAge.
func NewManager(cookieName string, secretKey []byte, maxAge time.Duration) *Manager {
	return &Manager{
		cookieName: cookieName,
		secretKey:  secretKey,
		maxAge:     maxAge,
	}
}

// Load returns the session carried by the request cookie.
// A missing, expired or tampered cookie yields an empty session.
func (m *Manager) Load(request *http.Request) *Session {
	cookie, err := request.Cookie(m.cookieName)
	if err != nil {
		return NewSession()
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		cookie.Value,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secretKey, nil
		},
	)
	if err != nil || !token.Valid {
		return NewSession()
	}

	s := NewSession()
	for key, value := range claims.Values {
		s.values[key] = value
	}

	return s
}

// Encode signs the session values into a cookie value.
func (m *Manager) Encode(s *Session, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
		Values: s.snapshot(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

func (m *Manager) cookie(s *Session) (*http.Cookie, error) {
	result := &http.Cookie{
		Name:     m.cookieName,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	if len(s.snapshot()) == 0 {
		result.MaxAge = -1
		return result, nil
	}

	value, err := m.Encode(s, time.Now())
	if err != nil {
		return nil, err
	}
	result.Value = value
	result.MaxAge = int(m.maxAge.Seconds())

	return result, nil
}

type sessionResponseWriter struct {
	http.ResponseWriter
	manager     *Manager
	session     *Session
	wroteHeader bool
}

func (w *sessionResponseWriter) save() {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	if !w.session.Dirty() {
		return
	}

	cookie, err := w.manager.cookie(w.session)
	if err != nil {
		logger.Log.Debugln("Error calling the `manager.cookie()`: ", zap.Error(err))
		return
	}
	http.SetCookie(w.ResponseWriter, cookie)
}

// WriteHeader writes the session cookie, if needed, before the status line.
func (w *sessionResponseWriter) WriteHeader(statusCode int) {
	w.save()
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write makes sure the session cookie precedes the body.
func (w *sessionResponseWriter) Write(b []byte) (int, error) {
	w.save()
	return w.ResponseWriter.Write(b)
}

// Middleware puts the request session into the context and saves it
// into the response cookie when a handler changed it.
func (m *Manager) Middleware(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		s := m.Load(request)

		sw := &sessionResponseWriter{
			ResponseWriter: response,
			manager:        m,
			session:        s,
		}

		ctx := context.WithValue(request.Context(), SessionKey, s)
		h.ServeHTTP(sw, request.WithContext(ctx))

		sw.save()
	}

	return http.HandlerFunc(middleware)
}

// FromContext returns the request session. Outside of Middleware it
// returns a fresh session that is never persisted.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(SessionKey).(*Session); ok && s != nil {
		return s
	}

	return NewSession()
}
