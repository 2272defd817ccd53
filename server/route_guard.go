package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/classroom-portal/session"
)

type guardDecision int

const (
	guardRender guardDecision = iota
	guardRedirect
	guardWait
)

// decideGuard maps a session state to what a protected view does with it.
// Failed is treated exactly like Unauthenticated.
func decideGuard(state session.State) guardDecision {
	switch state.Status {
	case session.StatusAuthenticated:
		return guardRender
	case session.StatusAuthenticating:
		return guardWait
	default:
		return guardRedirect
	}
}

type sessionStateKey struct{}

// RequireSession blocks a protected view until the session is known to be
// authenticated. It never calls the API itself. While a login or identity
// refresh is in flight it waits for the next transition, bounded by the
// configured guard wait, and then shows a self-refreshing loading page.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, changed := s.session.Watch()

		if decideGuard(state) == guardWait {
			deadline := time.NewTimer(s.config.GetGuardWait())
			defer deadline.Stop()

		wait:
			for decideGuard(state) == guardWait {
				select {
				case <-changed:
					state, changed = s.session.Watch()
				case <-deadline.C:
					break wait
				case <-r.Context().Done():
					return
				}
			}
		}

		switch decideGuard(state) {
		case guardRender:
			next(w, r.WithContext(context.WithValue(r.Context(), sessionStateKey{}, state)))
		case guardRedirect:
			redirectToLogin(w, r)
		default:
			s.renderLoading(w, r)
		}
	}
}

func (s *Server) renderLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Refresh", "1")
	s.render(w, http.StatusOK, pageLoading, pageData{Title: "Loading", Next: r.URL.RequestURI()})
}

// guardedState returns the state RequireSession admitted the request with.
func guardedState(r *http.Request) session.State {
	state, _ := r.Context().Value(sessionStateKey{}).(session.State)
	return state
}
