package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"

	layoutTemplate = "layout.html"

	pageLogin     = "login.html"
	pageRegister  = "register.html"
	pageDashboard = "dashboard.html"
	pageClasses   = "classes.html"
	pageLoading   = "loading.html"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(layoutTemplate).ParseFS(TemplateFilesFS(), layoutTemplate, name)
}

func parsePages(names ...string) (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// pageData is shared by every page. Data carries the page specific values.
type pageData struct {
	AppName  string
	Title    string
	UserName string
	Error    string
	Notice   string
	Next     string
	Data     any
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data pageData) {
	tmpl, ok := s.templates[name]
	if !ok {
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
	data.AppName = s.config.GetAppName()

	noStore(w)
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, layoutTemplate, data); err != nil {
		log.Err(err).Str("template", name).Msg("failed to render template")
	}
}
