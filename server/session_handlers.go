package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// SessionStateHandler returns the session state as JSON. With ?since=<version>
// it long-polls until the state moves past that version or the guard wait
// elapses.
func (s *Server) SessionStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, changed := s.session.Watch()

		if since, err := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64); err == nil && state.Version <= since {
			timer := time.NewTimer(s.config.GetGuardWait())
			defer timer.Stop()
			select {
			case <-changed:
				state = s.session.State()
			case <-timer.C:
			case <-r.Context().Done():
				return
			}
		}

		noStore(w)
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(state)
	}
}

// ClearErrorHandler dismisses a failed login or registration.
func (s *Server) ClearErrorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.session.ClearError()
		if wantsJSON(r) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.URL.Query().Get("from") == "register" {
			redirectSuccess(w, r, RouteRegister)
			return
		}
		redirectSuccess(w, r, loginPath(r.URL.Query().Get("next")))
	}
}
