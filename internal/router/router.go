// Package router wires the HTTP surface of rango: the chi routes, their
// middleware chain and the HTML handlers.
package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/patric-chuzhbe/rango/internal/authenticator"
	"github.com/patric-chuzhbe/rango/internal/config"
	"github.com/patric-chuzhbe/rango/internal/forms"
	"github.com/patric-chuzhbe/rango/internal/gzippedhttp"
	"github.com/patric-chuzhbe/rango/internal/logger"
	"github.com/patric-chuzhbe/rango/internal/models"
	"github.com/patric-chuzhbe/rango/internal/user"
)

// Paths of the rango pages.
const (
	IndexURL       = "/rango/"
	AboutURL       = "/rango/about/"
	AddCategoryURL = "/rango/add_category/"
	RegisterURL    = "/rango/register/"
	LoginURL       = "/rango/login/"
	RestrictedURL  = "/rango/restricted/"
	LogoutURL      = "/rango/logout/"
)

type categoryReader interface {
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)

	ListPagesForCategory(ctx context.Context, category *models.Category) ([]models.Page, error)

	TopCategoriesByLikes(ctx context.Context, n int) ([]models.Category, error)

	TopPagesByViews(ctx context.Context, n int) ([]models.Page, error)
}

type categoryWriter interface {
	AddCategory(ctx context.Context, f *forms.CategoryForm) (*models.Category, error)

	AddPage(ctx context.Context, category *models.Category, f *forms.PageForm) (*models.Page, error)
}

type registrar interface {
	Register(
		ctx context.Context,
		userForm *forms.UserForm,
		profileForm *forms.UserProfileForm,
	) (*user.User, *models.UserProfile, error)
}

type statistician interface {
	Stats(ctx context.Context) (models.Stats, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type directory interface {
	categoryReader
	categoryWriter
	registrar
	statistician
	pinger
}

type sessionKeeper interface {
	Middleware(h http.Handler) http.Handler
}

type trustedSubnetGuard interface {
	TrustedOnly(h http.Handler) http.Handler
}

// Router is the chi router serving rango.
type Router struct {
	*chi.Mux
	svc       directory
	auth      authenticator.Authenticator
	policy    config.Policy
	topN      int
	mediaRoot string
	now       func() time.Time
}

// InitOption configures New.
type InitOption func(*initOptions)

type initOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now as the source of the visit timestamps.
func WithClock(now func() time.Time) InitOption {
	return func(options *initOptions) {
		options.now = now
	}
}

// New builds the router. Pictures under mediaRoot are served from /media/.
func New(
	svc directory,
	authMiddleware authenticator.Authenticator,
	sessions sessionKeeper,
	statsGuard trustedSubnetGuard,
	mediaRoot string,
	policy config.Policy,
	topListSize int,
	optionsProto ...InitOption,
) *Router {
	options := &initOptions{
		now: time.Now,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	r := &Router{
		Mux:       chi.NewRouter(),
		svc:       svc,
		auth:      authMiddleware,
		policy:    policy,
		topN:      topListSize,
		mediaRoot: mediaRoot,
		now:       options.now,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.WithLoggingHTTPMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(gzippedhttp.UngzipRequest)
	r.Use(gzippedhttp.GzipResponse)

	r.Get(`/ping`, r.GetPing)
	r.With(statsGuard.TrustedOnly).Get(`/api/internal/stats`, r.GetApiinternalstats)
	r.Handle(`/media/*`, http.StripPrefix("/media/", noDirListing(http.FileServer(http.Dir(mediaRoot)))))

	r.Group(func(site chi.Router) {
		site.Use(sessions.Middleware)
		site.Use(authMiddleware.AuthenticateUser)

		site.Get(`/`, func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, IndexURL, http.StatusFound)
		})
		site.Get(IndexURL, r.GetIndex)
		site.Get(AboutURL, r.GetAbout)
		site.Get(`/rango/category/{slug}/`, r.GetCategory)
		site.Get(RegisterURL, r.GetRegister)
		site.Post(RegisterURL, r.PostRegister)
		site.Get(LoginURL, r.GetLogin)
		site.Post(LoginURL, r.PostLogin)

		site.Group(func(mutation chi.Router) {
			if policy.RequireAuthForMutation {
				mutation.Use(authMiddleware.RequireUser)
			}
			mutation.Get(AddCategoryURL, r.GetAddcategory)
			mutation.Post(AddCategoryURL, r.PostAddcategory)
			mutation.Get(`/rango/category/{slug}/add_page/`, r.GetAddpage)
			mutation.Post(`/rango/category/{slug}/add_page/`, r.PostAddpage)
		})

		site.Group(func(restricted chi.Router) {
			restricted.Use(authMiddleware.RequireUser)
			restricted.Get(RestrictedURL, r.GetRestricted)
			restricted.Get(LogoutURL, r.GetLogout)
		})
	})

	return r
}

func noDirListing(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		h.ServeHTTP(w, r)
	})
}

// CategoryURL returns the path of the category page.
func CategoryURL(slug string) string {
	return "/rango/category/" + slug + "/"
}

// AddPageURL returns the path of the add page form of a category.
func AddPageURL(slug string) string {
	return CategoryURL(slug) + "add_page/"
}
