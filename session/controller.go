// Package session owns the authentication state of the portal. The Controller
// is the only writer of session state; the gateway reports refreshes and
// revocations back to it through the gateway.Session hooks.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/classroom-portal/authapi"
	"github.com/jrsteele09/classroom-portal/credentials"
	"github.com/jrsteele09/classroom-portal/gateway"
	apperrors "github.com/jrsteele09/classroom-portal/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultLoginFailure    = "login failed"
	defaultRegisterFailure = "registration failed"
)

// AuthAPI is the remote authentication surface.
type AuthAPI interface {
	Login(ctx context.Context, req authapi.LoginRequest) (*authapi.AuthResponse, error)
	Register(ctx context.Context, req authapi.RegisterRequest) (*authapi.AuthResponse, error)
	CurrentIdentity(ctx context.Context) (*credentials.Identity, error)
	Logout(ctx context.Context) error
}

var _ gateway.Session = (*Controller)(nil)

// Controller is safe for concurrent use. Authentication operations run one at
// a time; state reads never block on the network.
type Controller struct {
	api    AuthAPI
	store  credentials.Store
	logger zerolog.Logger

	opMu sync.Mutex

	mu          sync.RWMutex
	state       State
	accessToken string
	initialized bool
	changed     chan struct{}
	subscribers map[int]chan State
	nextSubID   int
}

// New creates a controller over store. When store already holds a credential
// pair the controller starts Authenticating; the owner is expected to call
// RefreshIdentity to settle it.
func New(api AuthAPI, store credentials.Store) *Controller {
	c := &Controller{
		api:         api,
		store:       store,
		logger:      log.With().Str("component", "session").Logger(),
		changed:     make(chan struct{}),
		subscribers: make(map[int]chan State),
	}
	if _, ok := store.Load(); ok {
		c.state.Status = StatusAuthenticating
	}
	return c
}

// Login authenticates with a civil ID and password. On success the pair and
// identity are persisted before the state becomes Authenticated.
func (c *Controller) Login(ctx context.Context, req authapi.LoginRequest) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.transition(State{Status: StatusAuthenticating})
	resp, err := c.api.Login(ctx, req)
	if err != nil {
		c.fail(err, defaultLoginFailure)
		return fmt.Errorf("[session Login] %w", err)
	}
	c.authenticated(resp)
	return nil
}

// Register creates an account and signs it in, like Login.
func (c *Controller) Register(ctx context.Context, req authapi.RegisterRequest) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.transition(State{Status: StatusAuthenticating})
	resp, err := c.api.Register(ctx, req)
	if err != nil {
		c.fail(err, defaultRegisterFailure)
		return fmt.Errorf("[session Register] %w", err)
	}
	c.authenticated(resp)
	return nil
}

// RefreshIdentity revalidates the persisted credential against the current
// identity endpoint. Without a persisted pair it settles on Unauthenticated
// without any network call. Any failure clears the store.
func (c *Controller) RefreshIdentity(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	record, ok := c.store.Load()
	if !ok {
		c.signedOut()
		return nil
	}

	c.mu.Lock()
	c.accessToken = record.Pair.AccessToken
	c.initialized = true
	c.mu.Unlock()
	c.transition(State{Status: StatusAuthenticating})

	identity, err := c.api.CurrentIdentity(ctx)
	if err != nil {
		c.store.Clear()
		c.signedOut()
		c.logger.Warn().Err(err).Msg("stored credentials are no longer valid")
		return fmt.Errorf("[session RefreshIdentity] %w", err)
	}

	// The gateway may have rotated the pair while fetching the identity.
	current, ok := c.store.Load()
	if !ok {
		c.signedOut()
		return fmt.Errorf("[session RefreshIdentity] %w", apperrors.ErrNoCredentials)
	}
	c.store.Save(current.Pair, identity)

	c.mu.Lock()
	c.accessToken = current.Pair.AccessToken
	c.mu.Unlock()
	c.transition(State{Status: StatusAuthenticated, Identity: identity})
	return nil
}

// Logout never fails. The remote call is best effort; local credentials are
// always cleared.
func (c *Controller) Logout(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if _, ok := c.store.Load(); ok {
		if err := c.api.Logout(ctx); err != nil {
			c.logger.Debug().Err(err).Msg("remote logout failed, clearing local session anyway")
		}
	}
	c.store.Clear()
	c.signedOut()
}

// ClearError dismisses a Failed state. It has no effect in any other state.
func (c *Controller) ClearError() {
	c.transitionIf(StatusFailed, State{Status: StatusUnauthenticated})
}

// State returns the latest completed transition.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// IsAuthenticated is false while a login or identity refresh is in flight.
func (c *Controller) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.IsAuthenticated()
}

// Watch returns the current state together with a channel that is closed on
// the next transition.
func (c *Controller) Watch() (State, <-chan struct{}) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone(), c.changed
}

// Subscribe delivers the latest state after every transition. A slow
// subscriber only ever sees the most recent state; the controller never
// blocks on it. Call the returned func to unsubscribe; the channel is closed.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan State, 1)
	ch <- c.state.clone()
	c.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subscribers, id)
			close(ch)
		})
	}
}

// AccessToken implements gateway.Session.
func (c *Controller) AccessToken() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.initialized
}

// CredentialsRefreshed implements gateway.Session. The rotated pair is already
// persisted; the session state itself does not change. A pair that is no longer
// the stored one, or that lands after the session signed out, is ignored.
func (c *Controller) CredentialsRefreshed(pair credentials.Pair) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.Status {
	case StatusAuthenticated, StatusAuthenticating:
	default:
		c.logger.Debug().Stringer("status", c.state.Status).Msg("ignoring refreshed credentials")
		return
	}
	if record, ok := c.store.Load(); !ok || record.Pair.RefreshToken != pair.RefreshToken {
		c.logger.Debug().Msg("ignoring refreshed credentials that are no longer stored")
		return
	}
	c.accessToken = pair.AccessToken
	c.initialized = true
}

// CredentialsRevoked implements gateway.Session. A login that stored new
// credentials after the revocation keeps its session.
func (c *Controller) CredentialsRevoked() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.store.Load(); ok {
		c.logger.Debug().Msg("ignoring revocation, newer credentials are stored")
		return
	}
	c.accessToken = ""
	c.initialized = true
	c.setLocked(State{Status: StatusUnauthenticated})
}

func (c *Controller) authenticated(resp *authapi.AuthResponse) {
	identity := resp.User
	pair := resp.Pair()
	c.store.Save(pair, &identity)

	c.mu.Lock()
	c.accessToken = pair.AccessToken
	c.initialized = true
	c.mu.Unlock()
	c.transition(State{Status: StatusAuthenticated, Identity: &identity})
}

// fail records a Failed state. Only messages that came from the server (or
// from input validation) are shown; anything else gets the generic fallback.
func (c *Controller) fail(err error, fallback string) {
	kind := apperrors.KindOf(err)
	message := fallback
	switch kind {
	case apperrors.KindAuthenticationRejected, apperrors.KindRequestFailed, apperrors.KindValidation:
		message = apperrors.MessageOf(err, fallback)
	}
	c.transition(State{
		Status: StatusFailed,
		Err:    &ErrorDetail{Kind: kind.String(), Message: message},
	})
}

func (c *Controller) signedOut() {
	c.mu.Lock()
	c.accessToken = ""
	c.initialized = true
	c.mu.Unlock()
	c.transition(State{Status: StatusUnauthenticated})
}

func (c *Controller) transition(next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(next)
}

// transitionIf applies next only if the current status is still from.
func (c *Controller) transitionIf(from Status, next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status != from {
		return
	}
	c.setLocked(next)
}

func (c *Controller) setLocked(next State) {
	prev := c.state.Status
	next.Version = c.state.Version + 1
	c.state = next

	close(c.changed)
	c.changed = make(chan struct{})

	for _, ch := range c.subscribers {
		publishLatest(ch, next.clone())
	}

	c.logger.Debug().Stringer("from", prev).Stringer("to", next.Status).Uint64("version", next.Version).Msg("session transition")
}

// publishLatest replaces any undelivered state in ch with s.
func publishLatest(ch chan State, s State) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
