package gateway

import (
	"github.com/jrsteele09/classroom-portal/credentials"
	apperrors "github.com/jrsteele09/classroom-portal/internal/errors"
	"golang.org/x/oauth2"
)

// tokenSource reads the live session first and falls back to the store while
// the session is not attached or not initialized.
type tokenSource struct {
	g *Gateway
}

var _ oauth2.TokenSource = tokenSource{}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	if s := ts.g.attached(); s != nil {
		if token, ok := s.AccessToken(); ok {
			if token == "" {
				return nil, apperrors.ErrNoCredentials
			}
			return credentials.Pair{AccessToken: token}.Token(credentials.NowTimeFunc()), nil
		}
	}

	record, ok := ts.g.store.Load()
	if !ok {
		return nil, apperrors.ErrNoCredentials
	}
	return record.Token(), nil
}
