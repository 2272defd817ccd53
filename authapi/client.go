// Package authapi is the typed client for the remote authentication endpoints.
package authapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/classroom-portal/credentials"
	"github.com/jrsteele09/classroom-portal/gateway"
	apperrors "github.com/jrsteele09/classroom-portal/internal/errors"
)

// Sender is the part of the gateway the client needs.
type Sender interface {
	SendJSON(ctx context.Context, req *gateway.Request, out any) error
}

// Paths locates the endpoints relative to the API base URL.
type Paths struct {
	Login    string
	Register string
	Identity string
	Logout   string
}

// DefaultPaths matches the classroom API.
func DefaultPaths() Paths {
	return Paths{
		Login:    "/auth/login",
		Register: "/auth/register",
		Identity: "/auth/me",
		Logout:   "/auth/logout",
	}
}

type Client struct {
	sender Sender
	paths  Paths
}

func New(sender Sender, paths Paths) *Client {
	return &Client{sender: sender, paths: paths}
}

// Login exchanges a civil ID and password for a credential pair and identity.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if strings.TrimSpace(req.CivilID) == "" || req.Password == "" {
		return nil, apperrors.Validation("Civil ID and password are required")
	}
	return c.authenticate(ctx, c.paths.Login, req)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if strings.TrimSpace(req.CivilID) == "" || req.Password == "" || strings.TrimSpace(req.FullName) == "" {
		return nil, apperrors.Validation("Civil ID, full name and password are required")
	}
	return c.authenticate(ctx, c.paths.Register, req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.sender.SendJSON(ctx, &gateway.Request{
		Method:    http.MethodPost,
		Path:      path,
		Body:      body,
		Anonymous: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Pair().Complete() {
		return nil, apperrors.New(apperrors.KindUnknown, http.StatusOK, "server returned no credentials")
	}
	return &resp, nil
}

// CurrentIdentity asks the server who the stored credential belongs to.
func (c *Client) CurrentIdentity(ctx context.Context) (*credentials.Identity, error) {
	var env Envelope[*credentials.Identity]
	if err := c.sender.SendJSON(ctx, &gateway.Request{Method: http.MethodGet, Path: c.paths.Identity}, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("[authapi CurrentIdentity] empty identity: %w", apperrors.ErrNotFound)
	}
	return env.Data, nil
}

// Logout revokes the session server side. An expired access credential is
// not refreshed just to log out.
func (c *Client) Logout(ctx context.Context) error {
	return c.sender.SendJSON(ctx, &gateway.Request{Method: http.MethodPost, Path: c.paths.Logout, NoRefresh: true}, nil)
}
