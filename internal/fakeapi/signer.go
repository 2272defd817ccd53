package fakeapi

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// hmacSigner signs and verifies access tokens with a shared HS256 secret.
type hmacSigner struct {
	secret []byte
}

func newHMACSigner(secret string) *hmacSigner {
	return &hmacSigner{secret: []byte(secret)}
}

func (h *hmacSigner) Sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token with HMAC: %w", err)
	}
	return signed, nil
}

func (h *hmacSigner) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}
