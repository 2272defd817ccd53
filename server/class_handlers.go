package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/classroom-portal/classes"
	apperrors "github.com/jrsteele09/classroom-portal/internal/errors"
	"github.com/rs/zerolog/log"
)

type dashboardData struct {
	ClassCount   int
	StudentCount int
	Classes      []classes.Class
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := guardedState(r)
		data := pageData{Title: "Dashboard", UserName: state.Identity.DisplayName()}

		list, err := s.classes.List(r.Context())
		if err != nil {
			if s.handleAPIError(w, r, err) {
				return
			}
			data.Error = apperrors.MessageOf(err, "Failed to load classes")
		}

		summary := dashboardData{ClassCount: len(list), Classes: list}
		for _, c := range list {
			summary.StudentCount += c.StudentCount
		}
		data.Data = summary
		s.render(w, http.StatusOK, pageDashboard, data)
	}
}

func (s *Server) ClassesPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := guardedState(r)
		data := pageData{
			Title:    "Classes",
			UserName: state.Identity.DisplayName(),
			Error:    r.URL.Query().Get("error"),
			Notice:   r.URL.Query().Get("notice"),
		}

		list, err := s.classes.List(r.Context())
		if err != nil {
			if s.handleAPIError(w, r, err) {
				return
			}
			data.Error = apperrors.MessageOf(err, "Failed to load classes")
		}
		data.Data = list
		s.render(w, http.StatusOK, pageClasses, data)
	}
}

func (s *Server) CreateClassHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, RouteClasses, "Invalid form submission")
			return
		}

		maxStudents, _ := strconv.Atoi(r.PostFormValue("max_students"))
		class, err := s.classes.Create(r.Context(), classes.CreateRequest{
			Name:         strings.TrimSpace(r.PostFormValue("name")),
			SubjectID:    strings.TrimSpace(r.PostFormValue("subject_id")),
			SchoolYear:   strings.TrimSpace(r.PostFormValue("school_year")),
			Semester:     r.PostFormValue("semester"),
			ClassSection: strings.TrimSpace(r.PostFormValue("class_section")),
			MaxStudents:  maxStudents,
		})
		if err != nil {
			if s.handleAPIError(w, r, err) {
				return
			}
			redirectWithError(w, r, RouteClasses, apperrors.MessageOf(err, "Failed to create class"))
			return
		}
		redirectSuccess(w, r, withQuery(RouteClasses, "notice", "Created "+class.Name))
	}
}

func (s *Server) DeleteClassHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.classes.Delete(r.Context(), r.PathValue("id")); err != nil {
			if s.handleAPIError(w, r, err) {
				return
			}
			redirectWithError(w, r, RouteClasses, apperrors.MessageOf(err, "Failed to delete class"))
			return
		}
		redirectSuccess(w, r, withQuery(RouteClasses, "notice", "Class deleted"))
	}
}

// handleAPIError redirects to the login page when the gateway gave up on the
// session. It reports whether the response has been written.
func (s *Server) handleAPIError(w http.ResponseWriter, r *http.Request, err error) bool {
	if apperrors.Is(err, apperrors.ErrAuthenticationRequired) {
		log.Info().Str("path", r.URL.Path).Msg("session ended by the API, redirecting to login")
		redirectToLogin(w, r)
		return true
	}
	log.Err(err).Str("path", r.URL.Path).Msg("classroom API request failed")
	return false
}
