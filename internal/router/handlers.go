package router

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/rango/internal/auth"
	"github.com/patric-chuzhbe/rango/internal/forms"
	"github.com/patric-chuzhbe/rango/internal/logger"
	"github.com/patric-chuzhbe/rango/internal/session"
	"github.com/patric-chuzhbe/rango/internal/visits"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	indexBoldMessage = "Crunchy, creamy, cookie, candy, cupcake!"
	aboutBoldMessage = "This tutorial has been put together by the Rango team."

	loginDisabledMessage = "Your Rango account is disabled."
	loginInvalidMessage  = "Invalid login details supplied."

	registerMaxBody = forms.PictureMaxSize + 1<<20
)

// GetPing answers 200 when the storage is reachable.
func (r *Router) GetPing(w http.ResponseWriter, req *http.Request) {
	if err := r.svc.Ping(req.Context()); err != nil {
		internalError(w, "r.svc.Ping", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetApiinternalstats returns the number of categories, pages and users.
func (r *Router) GetApiinternalstats(w http.ResponseWriter, req *http.Request) {
	stats, err := r.svc.Stats(req.Context())
	if err != nil {
		internalError(w, "r.svc.Stats", err)
		return
	}

	body, err := json.Marshal(stats)
	if err != nil {
		internalError(w, "json.Marshal", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Log.Debugln("Error calling the `w.Write()`: ", zap.Error(err))
	}
}

// GetIndex shows the most liked categories and, when view counts are
// tracked, the most viewed pages.
func (r *Router) GetIndex(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	categories, err := r.svc.TopCategoriesByLikes(ctx, r.topN)
	if err != nil {
		internalError(w, "r.svc.TopCategoriesByLikes", err)
		return
	}

	data := pageData{
		"BoldMessage": indexBoldMessage,
		"Categories":  categories,
	}

	if r.policy.TrackViewCounts {
		pages, err := r.svc.TopPagesByViews(ctx, r.topN)
		if err != nil {
			internalError(w, "r.svc.TopPagesByViews", err)
			return
		}
		data["Pages"] = pages
	}

	visits.Track(session.FromContext(ctx), r.now())

	r.render(w, req, "index.html", data)
}

// GetAbout shows the visit counter.
func (r *Router) GetAbout(w http.ResponseWriter, req *http.Request) {
	count := visits.Track(session.FromContext(req.Context()), r.now())

	r.render(w, req, "about.html", pageData{
		"BoldMessage": aboutBoldMessage,
		"Visits":      count,
	})
}

// GetCategory shows a category with its pages. An unknown slug still
// answers 200 with an empty page.
func (r *Router) GetCategory(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	category, err := r.svc.FindCategoryBySlug(ctx, chi.URLParam(req, "slug"))
	if err != nil {
		internalError(w, "r.svc.FindCategoryBySlug", err)
		return
	}

	data := pageData{
		"Category": category,
		"Pages":    nil,
	}
	if category != nil {
		pages, err := r.svc.ListPagesForCategory(ctx, category)
		if err != nil {
			internalError(w, "r.svc.ListPagesForCategory", err)
			return
		}
		data["Pages"] = pages
	}

	r.render(w, req, "category.html", data)
}

func (r *Router) renderAddCategory(w http.ResponseWriter, req *http.Request, f *forms.CategoryForm) {
	r.render(w, req, "add_category.html", pageData{
		"Form":   f,
		"Errors": f.Errors,
	})
}

// GetAddcategory shows an empty category form.
func (r *Router) GetAddcategory(w http.ResponseWriter, req *http.Request) {
	r.renderAddCategory(w, req, &forms.CategoryForm{Errors: forms.ValidationErrors{}})
}

// PostAddcategory saves a new category and goes back to the index.
func (r *Router) PostAddcategory(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f := forms.BindCategoryForm(req.PostForm)
	if !f.Valid() {
		logger.Log.Debugln("add category form errors: ", f.Errors.Error())
		r.renderAddCategory(w, req, f)
		return
	}

	_, err := r.svc.AddCategory(req.Context(), f)
	var validationErrors forms.ValidationErrors
	if errors.As(err, &validationErrors) {
		f.Errors.Merge(validationErrors)
		r.renderAddCategory(w, req, f)
		return
	}
	if err != nil {
		internalError(w, "r.svc.AddCategory", err)
		return
	}

	http.Redirect(w, req, IndexURL, http.StatusFound)
}

// GetAddpage shows an empty page form for an existing category.
func (r *Router) GetAddpage(w http.ResponseWriter, req *http.Request) {
	r.addPage(w, req, false)
}

// PostAddpage saves a page under the category and goes back to it.
func (r *Router) PostAddpage(w http.ResponseWriter, req *http.Request) {
	r.addPage(w, req, true)
}

func (r *Router) addPage(w http.ResponseWriter, req *http.Request, submitted bool) {
	ctx := req.Context()

	category, err := r.svc.FindCategoryBySlug(ctx, chi.URLParam(req, "slug"))
	if err != nil {
		internalError(w, "r.svc.FindCategoryBySlug", err)
		return
	}
	if category == nil {
		http.Redirect(w, req, IndexURL, http.StatusFound)
		return
	}

	f := &forms.PageForm{Errors: forms.ValidationErrors{}}
	if submitted {
		if err := req.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f = forms.BindPageForm(req.PostForm)
		if f.Valid() {
			if _, err := r.svc.AddPage(ctx, category, f); err != nil {
				internalError(w, "r.svc.AddPage", err)
				return
			}
			http.Redirect(w, req, CategoryURL(category.Slug), http.StatusFound)
			return
		}
		logger.Log.Debugln("add page form errors: ", f.Errors.Error())
	}

	r.render(w, req, "add_page.html", pageData{
		"Form":     f,
		"Errors":   f.Errors,
		"Category": category,
	})
}

func (r *Router) renderRegister(
	w http.ResponseWriter,
	req *http.Request,
	userForm *forms.UserForm,
	profileForm *forms.UserProfileForm,
	registered bool,
) {
	r.render(w, req, "register.html", pageData{
		"UserForm":      userForm,
		"UserErrors":    userForm.Errors,
		"ProfileForm":   profileForm,
		"ProfileErrors": profileForm.Errors,
		"Registered":    registered,
	})
}

// GetRegister shows the empty registration forms.
func (r *Router) GetRegister(w http.ResponseWriter, req *http.Request) {
	r.renderRegister(
		w,
		req,
		&forms.UserForm{Errors: forms.ValidationErrors{}},
		&forms.UserProfileForm{Errors: forms.ValidationErrors{}},
		false,
	)
}

func uploadedPicture(req *http.Request) *multipart.FileHeader {
	if req.MultipartForm == nil {
		return nil
	}
	files := req.MultipartForm.File["picture"]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// PostRegister creates an account with its profile.
func (r *Router) PostRegister(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, registerMaxBody)
	err := req.ParseMultipartForm(registerMaxBody)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.MultipartForm != nil {
		defer func() {
			if err := req.MultipartForm.RemoveAll(); err != nil {
				logger.Log.Debugln("Error calling the `req.MultipartForm.RemoveAll()`: ", zap.Error(err))
			}
		}()
	}

	userForm := forms.BindUserForm(req.PostForm)
	profileForm := forms.BindUserProfileForm(req.PostForm, uploadedPicture(req))
	if !userForm.Valid() || !profileForm.Valid() {
		logger.Log.Debugln("register form errors: ", userForm.Errors.Error(), profileForm.Errors.Error())
		r.renderRegister(w, req, userForm, profileForm, false)
		return
	}

	_, _, err = r.svc.Register(req.Context(), userForm, profileForm)
	var validationErrors forms.ValidationErrors
	if errors.As(err, &validationErrors) {
		userForm.Errors.Merge(validationErrors)
		r.renderRegister(w, req, userForm, profileForm, false)
		return
	}
	if err != nil {
		internalError(w, "r.svc.Register", err)
		return
	}

	r.renderRegister(w, req, userForm, profileForm, true)
}

// safeNext keeps only local absolute paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return IndexURL
	}
	// Browsers drop tabs and newlines from Location, so "/\t/host" would
	// turn into a scheme relative URL.
	if strings.IndexFunc(next, func(c rune) bool { return c < 0x20 || c == 0x7f }) >= 0 {
		return IndexURL
	}
	parsed, err := url.Parse(next)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return IndexURL
	}
	return next
}

// GetLogin shows the login form.
func (r *Router) GetLogin(w http.ResponseWriter, req *http.Request) {
	r.render(w, req, "login.html", pageData{
		"Next": req.URL.Query().Get("next"),
	})
}

// PostLogin checks the submitted credentials and logs the account in.
func (r *Router) PostLogin(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	username := req.PostForm.Get("username")

	usr, err := r.auth.Authenticate(req.Context(), username, req.PostForm.Get("password"))
	if err != nil {
		internalError(w, "r.auth.Authenticate", err)
		return
	}
	if usr == nil {
		logger.Log.Infow("invalid login details", "username", username)
		writeText(w, loginInvalidMessage)
		return
	}
	if !usr.IsActive {
		writeText(w, loginDisabledMessage)
		return
	}

	auth.Login(session.FromContext(req.Context()), usr)

	next := req.PostForm.Get("next")
	if next == "" {
		next = req.URL.Query().Get("next")
	}
	http.Redirect(w, req, safeNext(next), http.StatusFound)
}

// GetRestricted is visible to logged in accounts only.
func (r *Router) GetRestricted(w http.ResponseWriter, req *http.Request) {
	r.render(w, req, "restricted.html", pageData{})
}

// GetLogout ends the session and goes back to the index.
func (r *Router) GetLogout(w http.ResponseWriter, req *http.Request) {
	auth.Logout(session.FromContext(req.Context()))
	http.Redirect(w, req, IndexURL, http.StatusFound)
}
