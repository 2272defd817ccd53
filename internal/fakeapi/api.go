// Package fakeapi is an in-process classroom API: authentication with rotating
// refresh tokens plus a teacher's classes. It backs the tests and the
// `portal fakeapi` development command.
package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/classroom-portal/authapi"
	"github.com/jrsteele09/classroom-portal/credentials"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	RouteLogin    = "/auth/login"
	RouteRegister = "/auth/register"
	RouteRefresh  = "/auth/refresh"
	RouteMe       = "/auth/me"
	RouteLogout   = "/auth/logout"
	RouteClasses  = "/classes"
	RouteClass    = "/classes/{id}"
)

// Options configures the API.
type Options struct {
	Secret     string
	AccessTTL  time.Duration
	BcryptCost int
}

// API implements http.Handler.
type API struct {
	mux     *http.ServeMux
	users   *userRepo
	tokens  *tokenIssuer
	classes *classRepo

	callsMu sync.Mutex
	calls   map[string]int
}

type ctxKey struct{}

func New(opts Options) *API {
	if opts.Secret == "" {
		opts.Secret = "development-secret-change-me"
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}

	a := &API{
		mux:     http.NewServeMux(),
		users:   newUserRepo(opts.BcryptCost),
		tokens:  newTokenIssuer(opts.Secret, opts.AccessTTL),
		classes: newClassRepo(),
		calls:   make(map[string]int),
	}
	a.mux.HandleFunc("POST "+RouteLogin, a.login)
	a.mux.HandleFunc("POST "+RouteRegister, a.register)
	a.mux.HandleFunc("POST "+RouteRefresh, a.refresh)
	a.mux.HandleFunc("GET "+RouteMe, a.requireUser(a.me))
	a.mux.HandleFunc("POST "+RouteLogout, a.requireUser(a.logout))
	a.mux.HandleFunc("GET "+RouteClasses, a.requireUser(a.listClasses))
	a.mux.HandleFunc("POST "+RouteClasses, a.requireUser(a.createClass))
	a.mux.HandleFunc("GET "+RouteClass, a.requireUser(a.getClass))
	a.mux.HandleFunc("DELETE "+RouteClass, a.requireUser(a.deleteClass))
	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.callsMu.Lock()
	a.calls[r.URL.Path]++
	a.callsMu.Unlock()

	log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("fakeapi request")
	a.mux.ServeHTTP(w, r)
}

// Calls returns how many requests were received for path.
func (a *API) Calls(path string) int {
	a.callsMu.Lock()
	defer a.callsMu.Unlock()
	return a.calls[path]
}

// TotalCalls returns the number of requests received on any path.
func (a *API) TotalCalls() int {
	a.callsMu.Lock()
	defer a.callsMu.Unlock()
	total := 0
	for _, n := range a.calls {
		total += n
	}
	return total
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (a *API) ExpireAccessTokens() {
	a.tokens.ExpireAll()
}

// RevokeRefreshTokens invalidates every refresh token.
func (a *API) RevokeRefreshTokens() {
	a.tokens.RevokeAll()
}

// SeedTeacher creates an account without going through the register endpoint.
func (a *API) SeedTeacher(req authapi.RegisterRequest) (*credentials.Identity, error) {
	return a.users.Create(identityFrom(req), req.Password)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req authapi.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identity, err := a.users.Authenticate(req.CivilID, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	a.writeAuthResponse(w, http.StatusOK, identity)
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req authapi.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.CivilID) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Civil ID and password are required")
		return
	}
	if _, err := uuid.Parse(req.SchoolID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid school ID format")
		return
	}

	identity, err := a.users.Create(identityFrom(req), req.Password)
	if errors.Is(err, errUserExists) {
		writeError(w, http.StatusConflict, "User with this civil ID already exists")
		return
	}
	if err != nil {
		log.Err(err).Msg("fakeapi: failed to create user")
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	a.writeAuthResponse(w, http.StatusCreated, identity)
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, err := a.tokens.Rotate(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	access, refresh, err := a.tokens.Issue(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}
	writeJSON(w, http.StatusOK, credentials.Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(a.tokens.accessTTL.Seconds()),
	})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	identity, err := a.users.GetByID(userIDFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, authapi.Envelope[*credentials.Identity]{Success: true, Data: identity})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	a.tokens.RevokeUser(userIDFrom(r.Context()))
	writeJSON(w, http.StatusOK, authapi.Envelope[any]{Success: true, Message: "Logged out successfully"})
}

func (a *API) writeAuthResponse(w http.ResponseWriter, status int, identity *credentials.Identity) {
	access, refresh, err := a.tokens.Issue(identity.ID)
	if err != nil {
		log.Err(err).Msg("fakeapi: failed to generate tokens")
		writeError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}
	writeJSON(w, status, authapi.AuthResponse{
		User:         *identity,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(a.tokens.accessTTL.Seconds()),
	})
}

// requireUser rejects requests without a valid bearer access token.
func (a *API) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}
		userID, err := a.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	}
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func identityFrom(req authapi.RegisterRequest) credentials.Identity {
	return credentials.Identity{
		CivilID:  req.CivilID,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		SchoolID: req.SchoolID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the API's error shape: {"error": true, "message": "..."}
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": true, "message": message})
}
