package authapi

import "github.com/jrsteele09/classroom-portal/credentials"

// LoginRequest identifies a teacher by civil ID.
type LoginRequest struct {
	CivilID  string `json:"civil_id"`
	Password string `json:"password"`
}

// RegisterRequest creates a teacher account.
type RegisterRequest struct {
	CivilID  string `json:"civil_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	SchoolID string `json:"school_id"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	User         credentials.Identity `json:"user"`
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	ExpiresIn    int                  `json:"expires_in"`
}

// Pair returns the credential pair carried by the response.
func (r AuthResponse) Pair() credentials.Pair {
	return credentials.Pair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken, ExpiresIn: r.ExpiresIn}
}

// Envelope wraps successful non-auth responses: {"success": true, "message": "...", "data": ...}
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}
