package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for the caller. The UI shows Error.Message verbatim.
type Kind int

const (
	// KindUnknown is a non-2xx response without a parseable message.
	KindUnknown Kind = iota
	// KindValidation is bad input caught before any network call.
	KindValidation
	// KindAuthenticationRejected means the server declined login/register credentials.
	KindAuthenticationRejected
	// KindAuthorizationExpired means the access credential is no longer valid.
	KindAuthorizationExpired
	// KindRefreshRejected means the refresh credential is invalid or missing. Forces logout.
	KindRefreshRejected
	// KindNetworkFailure is a transport-level failure; never retried here.
	KindNetworkFailure
	// KindRequestFailed is a non-2xx response carrying a server message.
	KindRequestFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_failure"
	case KindAuthenticationRejected:
		return "authentication_rejected"
	case KindAuthorizationExpired:
		return "authorization_expired"
	case KindRefreshRejected:
		return "refresh_rejected"
	case KindNetworkFailure:
		return "network_failure"
	case KindRequestFailed:
		return "request_failed"
	default:
		return "unknown"
	}
}

// Common error types for the portal
var (
	// Session errors
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAuthenticationRejected = errors.New("authentication rejected")
	ErrNoCredentials          = errors.New("no stored credentials")

	// Input errors
	ErrInvalidRequest = errors.New("invalid request")

	// General errors
	ErrNotFound = errors.New("not found")
)

// Error is the typed failure returned by the gateway and the session controller.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Message string // human readable, displayed as-is
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel that corresponds to the kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthenticationRequired:
		return e.Kind == KindRefreshRejected
	case ErrAuthenticationRejected:
		return e.Kind == KindAuthenticationRejected
	case ErrInvalidRequest:
		return e.Kind == KindValidation
	}
	return false
}

// New creates a typed error without a cause.
func New(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// Validation reports bad caller input.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// AuthenticationRequired is the terminal error of a failed refresh.
func AuthenticationRequired(cause error) *Error {
	return &Error{Kind: KindRefreshRejected, Status: http.StatusUnauthorized, Message: "Authentication required", Err: cause}
}

// Network wraps a transport failure.
func Network(cause error) *Error {
	return &Error{Kind: KindNetworkFailure, Message: "network failure", Err: cause}
}

// FromStatus builds the error for a non-2xx response. A server message wins over
// the generic status text.
func FromStatus(status int, serverMessage string) *Error {
	if serverMessage != "" {
		return &Error{Kind: KindRequestFailed, Status: status, Message: serverMessage}
	}
	return &Error{Kind: KindUnknown, Status: status, Message: fmt.Sprintf("Request failed with status: %d", status)}
}

// KindOf returns the kind of the first *Error in err's chain, KindUnknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the human readable message of err, or fallback when err is
// not a typed error or has no message.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
