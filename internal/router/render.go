package router

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/rango/internal/auth"
	"github.com/patric-chuzhbe/rango/internal/logger"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type pageData map[string]interface{}

func (r *Router) render(w http.ResponseWriter, req *http.Request, name string, data pageData) {
	data["User"] = auth.UserFromContext(req.Context())
	data["TrackViewCounts"] = r.policy.TrackViewCounts

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Log.Debugln("Error calling the `templates.ExecuteTemplate()`: ", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Log.Debugln("Error calling the `buf.WriteTo()`: ", zap.Error(err))
	}
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		logger.Log.Debugln("Error calling the `w.Write()`: ", zap.Error(err))
	}
}

func internalError(w http.ResponseWriter, where string, err error) {
	logger.Log.Debugln("Error calling the `"+where+"()`: ", zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
