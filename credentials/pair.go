package credentials

import (
	"time"

	"github.com/jrsteele09/classroom-portal/internal/utils"
	"golang.org/x/oauth2"
)

// Pair is the credential pair issued by login, register and refresh.
// Both credentials are opaque strings.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// Complete reports whether both credentials are present. Incomplete pairs are
// never persisted.
func (p Pair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Token converts the pair to an oauth2 bearer token issued at issuedAt.
func (p Pair) Token(issuedAt time.Time) *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
	}
	if p.ExpiresIn > 0 {
		t.Expiry = issuedAt.Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	return t
}

// Identity is the cached profile of the authenticated teacher. It is never
// authoritative; the current identity endpoint is.
type Identity struct {
	ID        string    `json:"id"`
	CivilID   string    `json:"civil_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	SchoolID  string    `json:"school_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the best available label for the identity.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if i.FullName != "" {
		return i.FullName
	}
	if i.Email != "" {
		return i.Email
	}
	return i.CivilID
}

// Record is everything the store persists.
type Record struct {
	Pair     Pair      `json:"pair"`
	Identity *Identity `json:"identity,omitempty"`
	SavedAt  time.Time `json:"saved_at"`
}

// Token returns the stored pair as an oauth2 token issued when it was saved.
func (r Record) Token() *oauth2.Token {
	return r.Pair.Token(r.SavedAt)
}

func cloneIdentity(identity *Identity) *Identity {
	return utils.Clone(identity)
}
