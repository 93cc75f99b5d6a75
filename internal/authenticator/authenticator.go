// Package authenticator declares what the HTTP layer needs from an
// authentication backend.
package authenticator

import (
	"context"
	"net/http"

	"github.com/patric-chuzhbe/rango/internal/user"
)

// Authenticator checks credentials and provides the user middlewares.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*user.User, error)
	AuthenticateUser(h http.Handler) http.Handler
	RequireUser(h http.Handler) http.Handler
}
