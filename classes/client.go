// Package classes wraps the class endpoints. Every call goes through the
// gateway, so an expired access credential is refreshed transparently.
package classes

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/classroom-portal/gateway"
	apperrors "github.com/jrsteele09/classroom-portal/internal/errors"
)

const basePath = "/classes"

type Sender interface {
	SendJSON(ctx context.Context, req *gateway.Request, out any) error
}

type Client struct {
	sender Sender
}

func New(sender Sender) *Client {
	return &Client{sender: sender}
}

// List returns the current teacher's classes.
func (c *Client) List(ctx context.Context) ([]Class, error) {
	var classes []Class
	if err := c.sender.SendJSON(ctx, &gateway.Request{Method: http.MethodGet, Path: basePath}, &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Class, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.Validation("class id is required")
	}
	var class Class
	if err := c.sender.SendJSON(ctx, &gateway.Request{Method: http.MethodGet, Path: basePath + "/" + url.PathEscape(id)}, &class); err != nil {
		return nil, err
	}
	return &class, nil
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (*Class, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.Validation("class name is required")
	}
	var class Class
	if err := c.sender.SendJSON(ctx, &gateway.Request{Method: http.MethodPost, Path: basePath, Body: req}, &class); err != nil {
		return nil, err
	}
	return &class, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.Validation("class id is required")
	}
	return c.sender.SendJSON(ctx, &gateway.Request{Method: http.MethodDelete, Path: basePath + "/" + url.PathEscape(id)}, nil)
}
