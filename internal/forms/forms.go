// Package forms decodes submitted HTML forms into typed values and
// validates them. Every form keeps the submitted values so that an
// invalid submission can be rendered again together with its errors.
package forms

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/form"
	validator "github.com/go-playground/validator/v10"

	"github.com/patric-chuzhbe/rango/internal/models"
	"github.com/patric-chuzhbe/rango/internal/user"
)

// PictureMaxSize is the largest accepted profile picture upload.
const PictureMaxSize = 5 << 20

// ValidationErrors maps a form field name to its error messages.
type ValidationErrors map[string][]string

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e[field], " "))
	}

	return strings.Join(parts, "; ")
}

// Add appends message to the errors of field.
func (e ValidationErrors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Has reports whether field has at least one error.
func (e ValidationErrors) Has(field string) bool {
	return len(e[field]) > 0
}

// Merge copies all errors of other into e.
func (e ValidationErrors) Merge(other ValidationErrors) {
	for field, messages := range other {
		e[field] = append(e[field], messages...)
	}
}

var (
	decoder  = form.NewDecoder()
	validate = newValidator()

	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	schemePattern   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
)

// pictureTypes lists the accepted profile picture formats. Vector and
// scriptable formats are refused since pictures are served from the site origin.
var pictureTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "username", func(fieldLevel validator.FieldLevel) bool {
		return usernamePattern.MatchString(fieldLevel.Field().String())
	})
	mustRegister(v, "weburl", func(fieldLevel validator.FieldLevel) bool {
		return isWebURL(fieldLevel.Field().String())
	})

	v.RegisterAlias("categoryname", maxTag(models.CategoryNameMaxLength))
	v.RegisterAlias("pagetitle", maxTag(models.PageTitleMaxLength))
	v.RegisterAlias("pageurl", maxTag(models.URLMaxLength))
	v.RegisterAlias("accountname", maxTag(user.UsernameMaxLength))

	return v
}

func maxTag(n int) string {
	return "max=" + strconv.Itoa(n)
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("forms: unable to register %q validation: %v", tag, err))
	}
}

func isWebURL(raw string) bool {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}

	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func checkURL(normalized string) string {
	if length := len([]rune(normalized)); length > models.URLMaxLength {
		return fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", models.URLMaxLength, length)
	}
	if !isWebURL(normalized) {
		return "Enter a valid URL."
	}

	return ""
}

// NormalizeURL prefixes raw with "http://" unless it starts with a scheme.
// Secure URLs are left untouched.
func NormalizeURL(raw string) string {
	if raw == "" || schemePattern.MatchString(raw) {
		return raw
	}

	return "http://" + raw
}

func message(fieldError validator.FieldError) string {
	switch fieldError.ActualTag() {
	case "required":
		return "This field is required."
	case "max":
		value, _ := fieldError.Value().(string)
		return fmt.Sprintf(
			"Ensure this value has at most %s characters (it has %d).",
			fieldError.Param(),
			len([]rune(value)),
		)
	case "min":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fieldError.Param())
	case "url", "weburl":
		return "Enter a valid URL."
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	}

	return "Enter a valid value."
}

// bind decodes values into dst and validates it.
// Decoding failures are reported as errors of the offending field.
func bind(dst interface{}, values url.Values) ValidationErrors {
	errs := ValidationErrors{}

	if err := decoder.Decode(dst, values); err != nil {
		var decodeErrors form.DecodeErrors
		if errors.As(err, &decodeErrors) {
			for field := range decodeErrors {
				errs.Add(field, "Enter a whole number.")
			}
		} else {
			errs.Add("__all__", err.Error())
		}
	}

	trimStrings(dst)

	collect(errs, validate.Struct(dst))

	return errs
}

func collect(errs ValidationErrors, err error) {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return
	}
	for _, fieldError := range fieldErrors {
		if errs.Has(fieldError.Field()) {
			continue
		}
		errs.Add(fieldError.Field(), message(fieldError))
	}
}

// trimStrings trims every exported string field except those tagged notrim.
func trimStrings(dst interface{}) {
	value := reflect.ValueOf(dst).Elem()
	valueType := value.Type()
	for i := 0; i < value.NumField(); i++ {
		field := value.Field(i)
		if field.Kind() != reflect.String || !field.CanSet() {
			continue
		}
		if valueType.Field(i).Tag.Get("trim") == "false" {
			continue
		}
		field.SetString(strings.TrimSpace(field.String()))
	}
}

// CategoryForm is the add category form.
// Views and likes are hidden fields; the slug is always derived from Name.
type CategoryForm struct {
	Name  string `form:"name" validate:"required,categoryname"`
	Views int    `form:"views" validate:"min=0"`
	Likes int    `form:"likes" validate:"min=0"`

	Errors ValidationErrors `form:"-"`
}

// BindCategoryForm decodes and validates a submitted category form.
func BindCategoryForm(values url.Values) *CategoryForm {
	f := &CategoryForm{}
	f.Errors = bind(f, values)

	if !f.Errors.Has("name") && models.Slugify(f.Name) == "" {
		f.Errors.Add("name", "Enter a name containing at least one letter or number.")
	}

	return f
}

// Valid reports whether the form has no errors.
func (f *CategoryForm) Valid() bool {
	return len(f.Errors) == 0
}

// Category returns the record described by the form.
func (f *CategoryForm) Category() *models.Category {
	return models.NewCategory(f.Name, f.Views, f.Likes)
}

// PageForm is the add page form. The category is bound from the request path.
type PageForm struct {
	Title string `form:"title" validate:"required,pagetitle"`
	URL   string `form:"url" validate:"required,pageurl"`
	Views int    `form:"views" validate:"min=0"`

	Errors ValidationErrors `form:"-"`
}

// BindPageForm decodes and validates a submitted page form.
// A URL that passed field validation is normalized and validated again.
func BindPageForm(values url.Values) *PageForm {
	f := &PageForm{}
	f.Errors = bind(f, values)

	if !f.Errors.Has("url") {
		f.URL = NormalizeURL(f.URL)
		if msg := checkURL(f.URL); msg != "" {
			f.Errors.Add("url", msg)
		}
	}

	return f
}

// Valid reports whether the form has no errors.
func (f *PageForm) Valid() bool {
	return len(f.Errors) == 0
}

// UserForm is the account part of the registration form.
type UserForm struct {
	Username string `form:"username" validate:"required,accountname,username"`
	Email    string `form:"email" validate:"omitempty,email"`
	Password string `form:"password" trim:"false" validate:"required"`

	Errors ValidationErrors `form:"-"`
}

// BindUserForm decodes and validates a submitted account form.
func BindUserForm(values url.Values) *UserForm {
	f := &UserForm{}
	f.Errors = bind(f, values)

	return f
}

// Valid reports whether the form has no errors.
func (f *UserForm) Valid() bool {
	return len(f.Errors) == 0
}

// User returns the account described by the form.
// The password is still cleartext and must be hashed before it is stored.
func (f *UserForm) User() *user.User {
	return &user.User{
		Username: f.Username,
		Email:    f.Email,
		Password: f.Password,
		IsActive: true,
	}
}

// UserProfileForm is the profile part of the registration form.
// The owning account is bound after it has been created.
type UserProfileForm struct {
	Website string `form:"website" validate:"omitempty,pageurl"`

	Picture *multipart.FileHeader `form:"-"`
	Errors  ValidationErrors      `form:"-"`
}

// BindUserProfileForm decodes and validates a submitted profile form.
// picture may be nil when no file was uploaded.
func BindUserProfileForm(values url.Values, picture *multipart.FileHeader) *UserProfileForm {
	f := &UserProfileForm{Picture: picture}
	f.Errors = bind(f, values)

	if f.Website != "" && !f.Errors.Has("website") {
		f.Website = NormalizeURL(f.Website)
		if msg := checkURL(f.Website); msg != "" {
			f.Errors.Add("website", msg)
		}
	}

	if picture != nil {
		if msg := checkPicture(picture); msg != "" {
			f.Errors.Add("picture", msg)
		}
	}

	return f
}

// Valid reports whether the form has no errors.
func (f *UserProfileForm) Valid() bool {
	return len(f.Errors) == 0
}

func checkPicture(picture *multipart.FileHeader) string {
	if picture.Size > PictureMaxSize {
		return "Ensure the picture is at most 5 MB."
	}

	file, err := picture.Open()
	if err != nil {
		return "Upload a valid image."
	}
	defer file.Close()

	detected, err := mimetype.DetectReader(file)
	if err != nil || !pictureTypes[detected.String()] {
		return "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	}

	return ""
}
