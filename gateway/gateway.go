// Package gateway issues every outbound call to the classroom API. It attaches
// the live access credential and recovers from exactly one failure class, an
// expired access credential, with a single refresh-and-retry cycle.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/classroom-portal/credentials"
	apperrors "github.com/jrsteele09/classroom-portal/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	contentTypeJSON = "application/json"
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 10 << 20
)

// Session is the live session state the gateway reads from and reports to.
// The session controller implements it.
type Session interface {
	// AccessToken returns the in-memory access credential. ok is false until
	// the session has initialized, in which case the store is consulted.
	AccessToken() (token string, ok bool)
	// CredentialsRefreshed is called after a rotated pair has been persisted.
	// It may arrive after the session has moved on and must then be ignored.
	CredentialsRefreshed(pair credentials.Pair)
	// CredentialsRevoked is called after the store has been cleared because the
	// refresh credential was rejected.
	CredentialsRevoked()
}

// Request describes one logical call. Paths are relative to the API base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any // JSON encoded when non-nil
	Header http.Header

	// Anonymous requests carry no bearer credential and never refresh. A 401 is
	// reported as AuthenticationRejected (login, register).
	Anonymous bool
	// NoRefresh requests carry the bearer credential but report a 401 as
	// AuthorizationExpired instead of refreshing (logout).
	NoRefresh bool
}

// Response is a successful (2xx) response. Body is returned unchanged.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Options configures a Gateway.
type Options struct {
	BaseURL     string
	RefreshPath string
	HTTPClient  *http.Client
	Metrics     *Metrics
}

// Gateway is safe for concurrent use.
type Gateway struct {
	baseURL     string
	refreshPath string
	client      *http.Client
	store       credentials.Store
	metrics     *Metrics
	tokens      oauth2.TokenSource
	logger      zerolog.Logger

	refreshGroup singleflight.Group

	mu      sync.RWMutex
	session Session
}

// New creates a gateway that persists rotated credentials in store.
func New(store credentials.Store, opts Options) *Gateway {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	refreshPath := opts.RefreshPath
	if refreshPath == "" {
		refreshPath = "/auth/refresh"
	}

	g := &Gateway{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		refreshPath: refreshPath,
		client:      client,
		store:       store,
		metrics:     metrics,
		logger:      log.With().Str("component", "gateway").Logger(),
	}
	g.tokens = tokenSource{g}
	return g
}

// Attach binds the live session. Until a session is attached (or while it
// reports itself uninitialized) credentials are read from the store.
func (g *Gateway) Attach(s Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = s
}

func (g *Gateway) attached() Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session
}

// pendingRequest is one Send invocation awaiting a possible retry.
type pendingRequest struct {
	req       *Request
	body      []byte
	requestID string
	retried   bool
	// refreshToken is the refresh credential that produced the retried
	// request's access credential.
	refreshToken string
}

func newPendingRequest(req *Request) (*pendingRequest, error) {
	p := &pendingRequest{req: req, requestID: uuid.NewString()}
	if req.Body != nil {
		body, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &apperrors.Error{Kind: apperrors.KindValidation, Message: "invalid request body", Err: err}
		}
		p.body = body
	}
	return p, nil
}

// Send issues req and returns the raw 2xx response. Failures are *errors.Error
// values; a rejected refresh returns one matching ErrAuthenticationRequired
// after the stored credentials have been cleared.
func (g *Gateway) Send(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.Path == "" {
		return nil, apperrors.Validation("request path is required")
	}
	p, err := newPendingRequest(req)
	if err != nil {
		return nil, err
	}

	for {
		token := ""
		if !req.Anonymous {
			token = g.currentAccessToken()
		}

		resp, err := g.do(ctx, p, token)
		if err != nil {
			g.metrics.RequestsTotal.WithLabelValues(outcomeNetwork).Inc()
			return nil, apperrors.Network(err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			g.metrics.RequestsTotal.WithLabelValues(outcomeOK).Inc()
			return resp, nil
		}

		if resp.StatusCode != http.StatusUnauthorized {
			g.metrics.RequestsTotal.WithLabelValues(outcomeFailed).Inc()
			return nil, apperrors.FromStatus(resp.StatusCode, serverMessage(resp.Body))
		}

		g.metrics.RequestsTotal.WithLabelValues(outcomeUnauthorized).Inc()
		switch {
		case req.Anonymous:
			return nil, apperrors.New(apperrors.KindAuthenticationRejected, resp.StatusCode, messageOr(resp.Body, "Invalid credentials"))
		case req.NoRefresh:
			return nil, apperrors.New(apperrors.KindAuthorizationExpired, resp.StatusCode, messageOr(resp.Body, "Session expired"))
		case p.retried:
			// A second authorization failure is terminal, never a second refresh.
			g.revoke(p, p.refreshToken, "retried request was rejected")
			return nil, apperrors.AuthenticationRequired(nil)
		}

		presented, err := g.refresh(ctx, token)
		if err != nil {
			g.revoke(p, presented, "refresh failed")
			return nil, apperrors.AuthenticationRequired(err)
		}

		if record, ok := g.store.Load(); ok {
			p.refreshToken = record.Pair.RefreshToken
		}
		p.retried = true
		g.metrics.RetriesTotal.Inc()
		g.logger.Debug().Str("request_id", p.requestID).Str("path", req.Path).Msg("retrying with refreshed credentials")
	}
}

// SendJSON issues req and decodes the response body into out. A nil out
// discards the body.
func (g *Gateway) SendJSON(ctx context.Context, req *Request, out any) error {
	resp, err := g.Send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &apperrors.Error{Kind: apperrors.KindUnknown, Status: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}

// TokenSource exposes the live access credential to other oauth2-aware clients.
func (g *Gateway) TokenSource() oauth2.TokenSource {
	return g.tokens
}

func (g *Gateway) currentAccessToken() string {
	token, err := g.tokens.Token()
	if err != nil {
		return ""
	}
	return token.AccessToken
}

func (g *Gateway) do(ctx context.Context, p *pendingRequest, accessToken string) (*Response, error) {
	target := g.baseURL + p.req.Path
	if len(p.req.Query) > 0 {
		target += "?" + p.req.Query.Encode()
	}

	method := p.req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if p.body != nil {
		body = bytes.NewReader(p.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range p.req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set(requestIDHeader, p.requestID)
	if p.body != nil {
		httpReq.Header.Set("Content-Type", contentTypeJSON)
	}
	if accessToken != "" {
		(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	g.logger.Debug().
		Str("request_id", p.requestID).
		Str("method", method).
		Str("path", p.req.Path).
		Int("status", resp.StatusCode).
		Bool("retried", p.retried).
		Msg("api request")

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// revoke clears every persisted credential and tells the session, unless the
// store no longer holds refreshToken: a logout or a newer login got there first.
func (g *Gateway) revoke(p *pendingRequest, refreshToken, reason string) {
	if !g.store.CompareAndClear(refreshToken) {
		g.logger.Debug().Str("request_id", p.requestID).Str("reason", reason).Msg("credentials changed since the request, leaving them in place")
		return
	}
	if s := g.attached(); s != nil {
		s.CredentialsRevoked()
	}
	g.logger.Warn().Str("request_id", p.requestID).Str("path", p.req.Path).Str("reason", reason).Msg("credentials revoked")
}

// errorBody is the error shape returned by the API: {"error": true, "message": "..."}
type errorBody struct {
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func serverMessage(body []byte) string {
	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorDescription
}

func messageOr(body []byte, fallback string) string {
	if msg := serverMessage(body); msg != "" {
		return msg
	}
	return fallback
}
