package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/rango/internal/logger"
)

const testCookieName = "sessionid"

var testSecretKey = []byte("0123456789abcdef0123456789abcdef")

func newTestManager() *Manager {
	return NewManager(testCookieName, testSecretKey, time.Hour)
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSessionDirtyTracking(t *testing.T) {
	s := NewSession()
	assert.False(t, s.Dirty())

	s.Delete("missing")
	s.Clear()
	assert.False(t, s.Dirty())

	s.Set("visits", "1")
	assert.True(t, s.Dirty())

	value, ok := s.Get("visits")
	require.True(t, ok)
	assert.Equal(t, "1", value)
}

func TestMiddlewareRoundTrip(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	m := newTestManager()

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		previous, _ := s.Get("counter")
		s.Set("counter", previous+"x")
		_, _ = w.Write([]byte(previous))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "", rec.Body.String())

	cookie := findCookie(rec.Result().Cookies(), testCookieName)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "x", rec.Body.String())
}

func TestMiddlewareUnchangedSessionWritesNoCookie(t *testing.T) {
	m := newTestManager()

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Nil(t, findCookie(rec.Result().Cookies(), testCookieName))
}

func TestMiddlewareClearDeletesCookie(t *testing.T) {
	m := newTestManager()

	s := NewSession()
	s.Set("_auth_user_id", "7")
	value, err := m.Encode(s, time.Now())
	require.NoError(t, err)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Clear()
		http.Redirect(w, r, "/", http.StatusFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: value})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	cookie := findCookie(rec.Result().Cookies(), testCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestLoadRejectsForeignCookies(t *testing.T) {
	m := newTestManager()

	s := NewSession()
	s.Set("_auth_user_id", "1")

	other := NewManager(testCookieName, []byte("another-secret-another-secret-00"), time.Hour)
	forged, err := other.Encode(s, time.Now())
	require.NoError(t, err)

	expired, err := m.Encode(s, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
	}{
		{name: "garbage", value: "not-a-token"},
		{name: "wrong key", value: forged},
		{name: "expired", value: expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: testCookieName, Value: tt.value})

			loaded := m.Load(req)
			_, ok := loaded.Get("_auth_user_id")
			assert.False(t, ok)
		})
	}
}

func TestFromContextWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s := FromContext(req.Context())
	require.NotNil(t, s)
	_, ok := s.Get("visits")
	assert.False(t, ok)
}
