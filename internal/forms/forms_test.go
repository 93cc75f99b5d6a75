package forms

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/rango/internal/models"
)

// A 1x1 transparent GIF.
var gifPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare host", in: "example.com", want: "http://example.com"},
		{name: "http kept", in: "http://example.com", want: "http://example.com"},
		{name: "https kept", in: "https://example.com", want: "https://example.com"},
		{name: "empty", in: "", want: ""},
		{name: "scheme in query", in: "example.com/go?to=http://other.org", want: "http://example.com/go?to=http://other.org"},
		{name: "other scheme kept", in: "ftp://example.com", want: "ftp://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestBindCategoryForm(t *testing.T) {
	tests := []struct {
		name       string
		values     url.Values
		wantValid  bool
		wantFields []string
		check      func(t *testing.T, f *CategoryForm)
	}{
		{
			name:      "valid with defaults",
			values:    url.Values{"name": {"  Go  "}},
			wantValid: true,
			check: func(t *testing.T, f *CategoryForm) {
				assert.Equal(t, "Go", f.Name)
				assert.Zero(t, f.Views)
				assert.Zero(t, f.Likes)
			},
		},
		{
			name:      "client slug ignored",
			values:    url.Values{"name": {"Other Frameworks"}, "slug": {"evil"}, "views": {"3"}, "likes": {"2"}},
			wantValid: true,
			check: func(t *testing.T, f *CategoryForm) {
				c := f.Category()
				assert.Equal(t, "other-frameworks", c.Slug)
				assert.Equal(t, 3, c.Views)
				assert.Equal(t, 2, c.Likes)
			},
		},
		{
			name:       "missing name",
			values:     url.Values{"name": {"   "}},
			wantFields: []string{"name"},
		},
		{
			name:       "name too long",
			values:     url.Values{"name": {strings.Repeat("a", 129)}},
			wantFields: []string{"name"},
			check: func(t *testing.T, f *CategoryForm) {
				assert.Equal(t, []string{"Ensure this value has at most 128 characters (it has 129)."}, f.Errors["name"])
			},
		},
		{
			name:       "name without slug",
			values:     url.Values{"name": {"!!!"}},
			wantFields: []string{"name"},
		},
		{
			name:      "name at the length limit",
			values:    url.Values{"name": {strings.Repeat("a", models.CategoryNameMaxLength)}},
			wantValid: true,
		},
		{
			name:       "negative counters",
			values:     url.Values{"name": {"Go"}, "views": {"-1"}, "likes": {"-5"}},
			wantFields: []string{"views", "likes"},
		},
		{
			name:       "non numeric views",
			values:     url.Values{"name": {"Go"}, "views": {"many"}},
			wantFields: []string{"views"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := BindCategoryForm(tt.values)
			assert.Equal(t, tt.wantValid, f.Valid(), f.Errors.Error())
			for _, field := range tt.wantFields {
				assert.True(t, f.Errors.Has(field), "expected an error on %q", field)
			}
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}

func TestBindPageForm(t *testing.T) {
	t.Run("prefixes a bare url", func(t *testing.T) {
		f := BindPageForm(url.Values{"title": {"Docs"}, "url": {"example.com/docs"}})
		require.True(t, f.Valid(), f.Errors.Error())
		assert.Equal(t, "http://example.com/docs", f.URL)
	})

	t.Run("prefixes a bare url carrying a url in its query", func(t *testing.T) {
		f := BindPageForm(url.Values{"title": {"Go"}, "url": {"example.com/go?to=http://other.org"}})
		require.True(t, f.Valid(), f.Errors.Error())
		assert.Equal(t, "http://example.com/go?to=http://other.org", f.URL)
	})

	t.Run("keeps secure urls", func(t *testing.T) {
		f := BindPageForm(url.Values{"title": {"Docs"}, "url": {"https://example.com"}})
		require.True(t, f.Valid(), f.Errors.Error())
		assert.Equal(t, "https://example.com", f.URL)
	})

	t.Run("required fields", func(t *testing.T) {
		f := BindPageForm(url.Values{})
		assert.False(t, f.Valid())
		assert.Equal(t, []string{"This field is required."}, f.Errors["title"])
		assert.Equal(t, []string{"This field is required."}, f.Errors["url"])
	})

	t.Run("normalized url too long", func(t *testing.T) {
		f := BindPageForm(url.Values{"title": {"Docs"}, "url": {"example.com/" + strings.Repeat("a", 185)}})
		assert.False(t, f.Valid())
		assert.True(t, f.Errors.Has("url"))
	})

	t.Run("garbage url", func(t *testing.T) {
		f := BindPageForm(url.Values{"title": {"Docs"}, "url": {"not a url"}})
		assert.False(t, f.Valid())
		assert.Equal(t, []string{"Enter a valid URL."}, f.Errors["url"])
	})
}

func TestBindUserForm(t *testing.T) {
	t.Run("valid and password untrimmed", func(t *testing.T) {
		f := BindUserForm(url.Values{"username": {" leif "}, "email": {"leif@example.com"}, "password": {" secret "}})
		require.True(t, f.Valid(), f.Errors.Error())
		usr := f.User()
		assert.Equal(t, "leif", usr.Username)
		assert.Equal(t, " secret ", usr.Password)
		assert.True(t, usr.IsActive)
	})

	t.Run("bad username and email", func(t *testing.T) {
		f := BindUserForm(url.Values{"username": {"no spaces"}, "email": {"nope"}, "password": {"x"}})
		assert.False(t, f.Valid())
		assert.True(t, f.Errors.Has("username"))
		assert.True(t, f.Errors.Has("email"))
	})

	t.Run("email is optional", func(t *testing.T) {
		f := BindUserForm(url.Values{"username": {"a.b@c+d-e_f"}, "password": {"x"}})
		assert.True(t, f.Valid(), f.Errors.Error())
	})
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("picture", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(PictureMaxSize))

	_, header, err := req.FormFile("picture")
	require.NoError(t, err)

	return header
}

func TestBindUserProfileForm(t *testing.T) {
	t.Run("empty profile is valid", func(t *testing.T) {
		f := BindUserProfileForm(url.Values{}, nil)
		assert.True(t, f.Valid())
	})

	t.Run("website normalized", func(t *testing.T) {
		f := BindUserProfileForm(url.Values{"website": {"example.org"}}, nil)
		require.True(t, f.Valid(), f.Errors.Error())
		assert.Equal(t, "http://example.org", f.Website)
	})

	t.Run("image accepted", func(t *testing.T) {
		f := BindUserProfileForm(url.Values{}, fileHeader(t, "me.gif", gifPixel))
		assert.True(t, f.Valid(), f.Errors.Error())
	})

	t.Run("svg rejected", func(t *testing.T) {
		svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(document.cookie)</script></svg>`)
		f := BindUserProfileForm(url.Values{}, fileHeader(t, "me.svg", svg))
		assert.False(t, f.Valid())
		assert.True(t, f.Errors.Has("picture"))
	})

	t.Run("text rejected", func(t *testing.T) {
		f := BindUserProfileForm(url.Values{}, fileHeader(t, "me.gif", []byte("plain text, not a picture")))
		assert.False(t, f.Valid())
		assert.True(t, f.Errors.Has("picture"))
	})
}

func TestValidationErrorsError(t *testing.T) {
	errs := ValidationErrors{}
	errs.Add("url", "Enter a valid URL.")
	errs.Add("name", "This field is required.")

	assert.Equal(t, "name: This field is required.; url: Enter a valid URL.", errs.Error())

	other := ValidationErrors{"name": {"Category with this Name already exists."}}
	errs.Merge(other)
	assert.Len(t, errs["name"], 2)
}
