package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/classroom-portal/authapi"
	"github.com/jrsteele09/classroom-portal/session"
	"github.com/rs/zerolog/log"
)

// IndexHandler sends the browser to the dashboard; the guard decides the rest.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
	}
}

// LoginPageData contains data for rendering the login and register pages
type LoginPageData struct {
	CivilID  string // Preserve civil ID on error
	FullName string
	Email    string
	Phone    string
	SchoolID string
}

// LoginPageHandler serves the login form. An authenticated session goes
// straight to the requested page.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return s.authPageHandler(pageLogin, "Sign in")
}

func (s *Server) RegisterPageHandler() http.HandlerFunc {
	return s.authPageHandler(pageRegister, "Create account")
}

func (s *Server) authPageHandler(page, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		next := safeNext(query.Get("next"))

		state := s.session.State()
		if state.IsAuthenticated() {
			redirectSuccess(w, r, next)
			return
		}

		s.render(w, http.StatusOK, page, pageData{
			Title: title,
			Error: formError(query.Get("error"), state),
			Next:  next,
			Data: LoginPageData{
				CivilID:  query.Get("civil_id"),
				FullName: query.Get("full_name"),
				Email:    query.Get("email"),
				Phone:    query.Get("phone"),
				SchoolID: query.Get("school_id"),
			},
		})
	}
}

// formError prefers an explicit error parameter and otherwise shows the
// session's failure detail until it is dismissed.
func formError(queryError string, state session.State) string {
	if queryError != "" {
		return queryError
	}
	if state.Status == session.StatusFailed && state.Err != nil {
		return state.Err.Message
	}
	return ""
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, RouteLogin, "Invalid form submission")
			return
		}
		next := safeNext(r.PostFormValue("next"))
		civilID := strings.TrimSpace(r.PostFormValue("civil_id"))

		err := s.session.Login(r.Context(), authapi.LoginRequest{
			CivilID:  civilID,
			Password: r.PostFormValue("password"),
		})
		if err != nil {
			log.Debug().Err(err).Msg("login failed")
			// The failure detail is rendered from the session state.
			redirectSuccess(w, r, withQuery(loginPath(next), "civil_id", civilID))
			return
		}

		log.Info().Str("civil_id", civilID).Msg("teacher signed in")
		redirectSuccess(w, r, next)
	}
}

// RegisterSubmissionHandler processes the registration form submission
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, RouteRegister, "Invalid form submission")
			return
		}

		req := authapi.RegisterRequest{
			CivilID:  strings.TrimSpace(r.PostFormValue("civil_id")),
			FullName: strings.TrimSpace(r.PostFormValue("full_name")),
			Email:    strings.TrimSpace(r.PostFormValue("email")),
			Phone:    strings.TrimSpace(r.PostFormValue("phone")),
			Password: r.PostFormValue("password"),
			SchoolID: strings.TrimSpace(r.PostFormValue("school_id")),
		}
		if req.Password != r.PostFormValue("confirm_password") {
			redirectWithError(w, r, registerFormPath(req), "Passwords do not match")
			return
		}

		if err := s.session.Register(r.Context(), req); err != nil {
			log.Debug().Err(err).Msg("registration failed")
			redirectSuccess(w, r, registerFormPath(req))
			return
		}

		log.Info().Str("civil_id", req.CivilID).Msg("teacher registered")
		redirectSuccess(w, r, RouteDashboard)
	}
}

// registerFormPath preserves everything but the password.
func registerFormPath(req authapi.RegisterRequest) string {
	path := RouteRegister
	for _, kv := range [][2]string{
		{"civil_id", req.CivilID},
		{"full_name", req.FullName},
		{"email", req.Email},
		{"phone", req.Phone},
		{"school_id", req.SchoolID},
	} {
		if kv[1] != "" {
			path = withQuery(path, kv[0], kv[1])
		}
	}
	return path
}

// LogoutHandler signs out. It never fails.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.session.Logout(r.Context())
		redirectSuccess(w, r, RouteLogin)
	}
}
