package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/rango/internal/authenticator"
	"github.com/patric-chuzhbe/rango/internal/db/memorystorage"
	"github.com/patric-chuzhbe/rango/internal/logger"
	"github.com/patric-chuzhbe/rango/internal/mockstorage"
	"github.com/patric-chuzhbe/rango/internal/session"
	"github.com/patric-chuzhbe/rango/internal/user"
)

const loginURL = "/rango/login/"

var _ authenticator.Authenticator = (*Auth)(nil)

func newUser(t *testing.T, db *memorystorage.MemoryStorage, username, password string, active bool) *user.User {
	t.Helper()

	usr := &user.User{Username: username, IsActive: active}
	require.NoError(t, usr.SetPassword(password))
	_, err := db.CreateUser(context.Background(), usr, nil)
	require.NoError(t, err)

	return usr
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	db, err := memorystorage.New()
	require.NoError(t, err)

	active := newUser(t, db, "leif", "pw", true)
	newUser(t, db, "sleepy", "pw", false)

	a := New(db, loginURL)

	got, err := a.Authenticate(ctx, "leif", "pw")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, active.ID, got.ID)

	got, err = a.Authenticate(ctx, "sleepy", "pw")
	require.NoError(t, err)
	require.NotNil(t, got, "inactive accounts are still authenticated")
	assert.False(t, got.IsActive)

	got, err = a.Authenticate(ctx, "leif", "wrong")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = a.Authenticate(ctx, "nobody", "pw")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func serveWithSession(h http.Handler, s *session.Session, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(context.WithValue(req.Context(), session.SessionKey, s))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestAuthenticateUserAndRequireUser(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	db, err := memorystorage.New()
	require.NoError(t, err)
	active := newUser(t, db, "leif", "pw", true)
	inactive := newUser(t, db, "sleepy", "pw", false)

	a := New(db, loginURL)
	guarded := a.AuthenticateUser(a.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserFromContext(r.Context()).Username))
	})))

	t.Run("logged in", func(t *testing.T) {
		s := session.NewSession()
		Login(s, active)

		rec := serveWithSession(guarded, s, "/rango/restricted/")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "leif", rec.Body.String())
	})

	t.Run("anonymous is redirected with next", func(t *testing.T) {
		rec := serveWithSession(guarded, session.NewSession(), "/rango/restricted/")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/rango/login/?next=%2Frango%2Frestricted%2F", rec.Header().Get("Location"))
	})

	t.Run("inactive account is logged out", func(t *testing.T) {
		s := session.NewSession()
		Login(s, inactive)

		rec := serveWithSession(guarded, s, "/rango/restricted/")
		assert.Equal(t, http.StatusFound, rec.Code)
		_, ok := s.Get(SessionUserKey)
		assert.False(t, ok)
	})

	t.Run("logout clears the session", func(t *testing.T) {
		s := session.NewSession()
		Login(s, active)
		s.Set("visits", "3")
		Logout(s)

		_, ok := s.Get(SessionUserKey)
		assert.False(t, ok)
		_, ok = s.Get("visits")
		assert.False(t, ok)
	})
}

func TestAuthenticateUserStorageError(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	db := new(mockstorage.StorageMock)
	db.On("GetUserByID", mock.Anything, int64(1), mock.Anything).Return(nil, errors.New("db error"))

	a := New(db, loginURL)
	h := a.AuthenticateUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	s := session.NewSession()
	s.Set(SessionUserKey, "1")
	rec := serveWithSession(h, s, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
