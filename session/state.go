package session

import (
	"fmt"

	"github.com/jrsteele09/classroom-portal/credentials"
	"github.com/jrsteele09/classroom-portal/internal/utils"
)

// Status is the phase of the session state machine.
type Status int

const (
	StatusUnauthenticated Status = iota
	StatusAuthenticating
	StatusAuthenticated
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrorDetail is the human readable reason of a Failed state.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// State is an immutable snapshot. Identity is only set when Authenticated,
// Err only when Failed.
type State struct {
	Status   Status                `json:"status"`
	Identity *credentials.Identity `json:"identity,omitempty"`
	Err      *ErrorDetail          `json:"error,omitempty"`
	Version  uint64                `json:"version"`
}

func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

func (s State) clone() State {
	s.Identity = utils.Clone(s.Identity)
	s.Err = utils.Clone(s.Err)
	return s
}
