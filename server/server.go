package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/classroom-portal/authapi"
	"github.com/jrsteele09/classroom-portal/classes"
	"github.com/jrsteele09/classroom-portal/internal/config"
	"github.com/jrsteele09/classroom-portal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// SessionController is the part of the session the web front-end drives.
type SessionController interface {
	Login(ctx context.Context, req authapi.LoginRequest) error
	Register(ctx context.Context, req authapi.RegisterRequest) error
	Logout(ctx context.Context)
	ClearError()
	State() session.State
	Watch() (session.State, <-chan struct{})
}

// ClassService backs the protected class views.
type ClassService interface {
	List(ctx context.Context) ([]classes.Class, error)
	Create(ctx context.Context, req classes.CreateRequest) (*classes.Class, error)
	Delete(ctx context.Context, id string) error
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	session   SessionController
	classes   ClassService
	gatherer  prometheus.Gatherer
	templates map[string]*template.Template
}

func New(config config.Config, sessions SessionController, classService ClassService, gatherer prometheus.Gatherer) (*Server, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		session:  sessions,
		classes:  classService,
		gatherer: gatherer,
	}

	templates, err := parsePages(pageLogin, pageRegister, pageDashboard, pageClasses, pageLoading)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}
	s.templates = templates

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colouredMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colouredMethod(method), path, Red+error+ResetColor)
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
