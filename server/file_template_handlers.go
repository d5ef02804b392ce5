package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/screens"
	"github.com/jrsteele09/go-auth-engine/tenants"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	screenTemplate = "screen.html"
	errorTemplate  = "error.html"
)

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplates parses every page template of the embedded filesystem into one set.
func ParseTemplates() (*template.Template, error) {
	t, err := template.ParseFS(TemplateFilesFS(), "*.html")
	if err != nil {
		return nil, errors.Wrap(err, "[ParseTemplates] ParseFS")
	}
	return t, nil
}

type screenPage struct {
	TenantName string
	View       *screens.View
}

type errorPage struct {
	Locale  string
	Title   string
	Message string
	Code    string
}

// textFor builds the render context of a request from the login session's ui_locales, then
// the request's Accept-Language, then the tenant's default locale.
func textFor(r *http.Request, tenant *tenants.Tenant, ls *loginsessions.LoginSession) screens.RenderContext {
	uiLocales := r.URL.Query().Get("ui_locales")
	if ls != nil && ls.AuthParams.UILocales != "" {
		uiLocales = ls.AuthParams.UILocales
	}
	if uiLocales == "" {
		uiLocales = acceptLanguages(r.Header.Get("Accept-Language"))
	}
	if tenant == nil {
		return screens.NewRenderContext(uiLocales, "", nil)
	}
	return screens.NewRenderContext(uiLocales, tenant.DefaultLocale, tenant.Texts)
}

// acceptLanguages turns "es-ES,es;q=0.9,en;q=0.8" into "es-ES es en".
func acceptLanguages(header string) string {
	var langs []string
	for _, part := range strings.Split(header, ",") {
		lang, _, _ := strings.Cut(part, ";")
		if lang = strings.TrimSpace(lang); lang != "" && lang != "*" {
			langs = append(langs, lang)
		}
	}
	return strings.Join(langs, " ")
}

func (s *Server) renderScreen(w http.ResponseWriter, status int, tenant *tenants.Tenant, v *screens.View) {
	name := ""
	if tenant != nil {
		name = tenant.Name
	}
	s.renderPage(w, status, screenTemplate, screenPage{TenantName: name, View: v})
}

// renderError draws the error page with the status of err's kind. Only the user-visible message
// of an apperror is shown; everything else becomes the generic text.
func (s *Server) renderError(w http.ResponseWriter, err error, text screens.RenderContext) {
	status := apperrors.StatusOf(err)
	code, message := errorBody(err)
	switch {
	case apperrors.Is(err, apperrors.ErrSessionExpired):
		message = text.T("error.session_expired")
	case apperrors.KindOf(err) == apperrors.KindTransient || status == http.StatusInternalServerError:
		message = text.T("error.generic")
	}
	if status >= http.StatusInternalServerError {
		log.Err(err).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	s.renderPage(w, status, errorTemplate, errorPage{
		Locale:  text.Locale,
		Title:   text.T("error.title"),
		Message: message,
		Code:    code,
	})
}

func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
