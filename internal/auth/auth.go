// Package auth checks credentials against stored accounts and keeps the
// logged in account in the visitor session. It provides middleware that
// resolves the current user and guards pages that require one.
package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/rango/internal/logger"
	"github.com/patric-chuzhbe/rango/internal/session"
	"github.com/patric-chuzhbe/rango/internal/user"
)

type userKeeper interface {
	GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error)
	GetUserByUsername(ctx context.Context, username string, transaction *sql.Tx) (*user.User, error)
}

// SessionUserKey is the session key holding the logged in account ID.
const SessionUserKey = "_auth_user_id"

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserKey is the context key used to store and retrieve the authenticated user.
const UserKey ContextKey = "user"

// Auth handles user authentication against the account storage.
type Auth struct {
	// db is the interface to the user data storage.
	db userKeeper

	// loginURL is where RequireUser sends anonymous visitors.
	loginURL string
}

// New creates a new Auth over db. Anonymous visitors of guarded pages are
// redirected to loginURL.
func New(db userKeeper, loginURL string) *Auth {
	return &Auth{
		db:       db,
		loginURL: loginURL,
	}
}

// Authenticate returns the account matching username and password, or nil
// when the username is unknown or the password is wrong. The returned
// account may be inactive; callers decide how to treat it.
func (a *Auth) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	usr, err := a.db.GetUserByUsername(ctx, username, nil)
	if err != nil {
		return nil, err
	}
	if usr == nil {
		return nil, nil
	}

	ok, err := usr.CheckPassword(password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	return usr, nil
}

// Login remembers usr in the session.
func Login(store session.Store, usr *user.User) {
	store.Set(SessionUserKey, strconv.FormatInt(usr.ID, 10))
}

// Logout forgets the whole session, including the visit counter.
func Logout(store session.Store) {
	store.Clear()
}

// AuthenticateUser is an HTTP middleware that resolves the account stored in
// the session and puts it into the request context. Unknown or inactive
// accounts are dropped from the session and the request continues anonymously.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		store := session.FromContext(request.Context())

		raw, ok := store.Get(SessionUserKey)
		if !ok {
			h.ServeHTTP(response, request)
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			store.Delete(SessionUserKey)
			h.ServeHTTP(response, request)
			return
		}

		usr, err := a.db.GetUserByID(request.Context(), userID, nil)
		if err != nil {
			logger.Log.Debugln("Error calling the `a.db.GetUserByID()`: ", zap.Error(err))
			response.WriteHeader(http.StatusInternalServerError)
			return
		}
		if usr == nil || !usr.IsActive {
			store.Delete(SessionUserKey)
			h.ServeHTTP(response, request)
			return
		}

		ctx := context.WithValue(request.Context(), UserKey, usr)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// RequireUser is an HTTP middleware that redirects anonymous visitors to
// the login page, passing the requested path in the next parameter.
func (a *Auth) RequireUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if UserFromContext(request.Context()) == nil {
			target := a.loginURL + "?next=" + url.QueryEscape(request.URL.RequestURI())
			http.Redirect(response, request, target, http.StatusFound)
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

// UserFromContext returns the authenticated user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *user.User {
	usr, _ := ctx.Value(UserKey).(*user.User)
	return usr
}
