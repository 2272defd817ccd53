package fakeapi

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const refreshTokenBytes = 32

var errInvalidToken = errors.New("invalid token")

// accessClaims are the claims of an access token. Generation lets the server
// invalidate every outstanding access token at once.
type accessClaims struct {
	UserID     string `json:"user_id"`
	Type       string `json:"type"`
	Generation int    `json:"gen"`
	jwt.RegisteredClaims
}

// tokenIssuer creates short-lived JWT access tokens and opaque rotating
// refresh tokens. One refresh token is valid per user.
type tokenIssuer struct {
	signer    *hmacSigner
	accessTTL time.Duration

	mu         sync.Mutex
	generation int
	refresh    map[string]string // refresh token -> user id
	byUser     map[string]string // user id -> refresh token
}

func newTokenIssuer(secret string, accessTTL time.Duration) *tokenIssuer {
	return &tokenIssuer{
		signer:    newHMACSigner(secret),
		accessTTL: accessTTL,
		refresh:   make(map[string]string),
		byUser:    make(map[string]string),
	}
}

// Issue creates a new pair for userID, replacing the user's refresh token.
func (t *tokenIssuer) Issue(userID string) (access, refresh string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := NowTimeFunc()
	access, err = t.signer.Sign(accessClaims{
		UserID:     userID,
		Type:       "access",
		Generation: t.generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
			ID:        uuid.NewString(),
		},
	})
	if err != nil {
		return "", "", err
	}

	tokenBytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	refresh = hex.EncodeToString(tokenBytes)

	if old, ok := t.byUser[userID]; ok {
		delete(t.refresh, old)
	}
	t.refresh[refresh] = userID
	t.byUser[userID] = refresh
	return access, refresh, nil
}

// Verify returns the user id carried by a valid access token.
func (t *tokenIssuer) Verify(access string) (string, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(access, claims, t.signer.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(NowTimeFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", errInvalidToken
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if claims.Type != "access" || claims.Generation != t.generation || claims.UserID == "" {
		return "", errInvalidToken
	}
	return claims.UserID, nil
}

// Rotate consumes a refresh token and returns the owning user id.
func (t *tokenIssuer) Rotate(refresh string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	userID, ok := t.refresh[refresh]
	if !ok {
		return "", errInvalidToken
	}
	delete(t.refresh, refresh)
	delete(t.byUser, userID)
	return userID, nil
}

// RevokeUser drops the user's refresh token.
func (t *tokenIssuer) RevokeUser(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.byUser[userID]; ok {
		delete(t.refresh, old)
		delete(t.byUser, userID)
	}
}

// ExpireAll invalidates every access token issued so far.
func (t *tokenIssuer) ExpireAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
}

// RevokeAll drops every refresh token.
func (t *tokenIssuer) RevokeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refresh = make(map[string]string)
	t.byUser = make(map[string]string)
}
