package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/classroom-portal/credentials"
	apperrors "github.com/jrsteele09/classroom-portal/internal/errors"
)

const refreshKey = "refresh"

// errSessionChanged means the stored credentials were replaced or cleared while
// a refresh was in flight; its result is discarded.
var errSessionChanged = errors.New("session changed during refresh")

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refresh exchanges the persisted refresh credential for a new pair. stale is
// the access credential the failed request carried. Concurrent callers share
// one in-flight exchange. The returned refresh credential is the one that was
// presented, empty when none was.
func (g *Gateway) refresh(ctx context.Context, stale string) (string, error) {
	// The shared exchange must not die with whichever caller started it.
	sharedCtx := context.WithoutCancel(ctx)
	v, err, shared := g.refreshGroup.Do(refreshKey, func() (any, error) {
		// Another request already rotated the credential: retry with the new one.
		if current := g.currentAccessToken(); current != "" && current != stale {
			g.metrics.RefreshesTotal.WithLabelValues(refreshSuperseded).Inc()
			return "", nil
		}
		presented, err := g.exchange(sharedCtx)
		return presented, err
	})
	if shared {
		g.metrics.RefreshesTotal.WithLabelValues(refreshCoalesced).Inc()
	}
	presented, _ := v.(string)
	return presented, err
}

func (g *Gateway) exchange(ctx context.Context) (string, error) {
	record, ok := g.store.Load()
	if !ok || record.Pair.RefreshToken == "" {
		g.metrics.RefreshesTotal.WithLabelValues(refreshRejected).Inc()
		return "", apperrors.ErrNoCredentials
	}
	presented := record.Pair.RefreshToken

	p, err := newPendingRequest(&Request{
		Method: http.MethodPost,
		Path:   g.refreshPath,
		Body:   refreshRequest{RefreshToken: presented},
	})
	if err != nil {
		return presented, err
	}

	resp, err := g.do(ctx, p, "")
	if err != nil {
		g.metrics.RefreshesTotal.WithLabelValues(refreshFailed).Inc()
		return presented, apperrors.Network(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.metrics.RefreshesTotal.WithLabelValues(refreshRejected).Inc()
		return presented, apperrors.New(apperrors.KindRefreshRejected, resp.StatusCode, messageOr(resp.Body, "Invalid refresh token"))
	}

	var pair credentials.Pair
	if err := json.Unmarshal(resp.Body, &pair); err != nil {
		g.metrics.RefreshesTotal.WithLabelValues(refreshFailed).Inc()
		return presented, fmt.Errorf("decode refresh response: %w", err)
	}
	if pair.RefreshToken == "" {
		// Servers that do not rotate keep the old refresh credential valid.
		pair.RefreshToken = presented
	}
	if !pair.Complete() {
		g.metrics.RefreshesTotal.WithLabelValues(refreshFailed).Inc()
		return presented, fmt.Errorf("refresh response carried no access credential")
	}

	// A logout or a new login while the exchange was in flight owns the store now.
	if !g.store.CompareAndSave(presented, pair, record.Identity) {
		g.metrics.RefreshesTotal.WithLabelValues(refreshDiscarded).Inc()
		g.logger.Info().Msg("discarding refreshed credential, the session changed")
		return presented, errSessionChanged
	}
	if s := g.attached(); s != nil {
		s.CredentialsRefreshed(pair)
	}

	g.metrics.RefreshesTotal.WithLabelValues(refreshSuccess).Inc()
	g.logger.Info().Msg("access credential refreshed")
	return presented, nil
}
