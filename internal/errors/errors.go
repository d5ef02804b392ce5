package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how the request pipeline must react to it.
type Kind string

const (
	// KindValidation covers malformed identifiers and missing fields. The screen is re-rendered.
	KindValidation Kind = "validation"
	// KindNotFound covers unknown screens and expired or missing login sessions and codes.
	KindNotFound Kind = "not_found"
	// KindAuthorizationDenied covers hook denials, missing permissions and membership failures.
	KindAuthorizationDenied Kind = "access_denied"
	// KindLockedOut is returned while too many recent failed logins exist, whatever the credential.
	KindLockedOut Kind = "locked_out"
	// KindTransient covers store and notifier failures.
	KindTransient Kind = "server_error"
)

// Common error values for the engine
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserBlocked         = errors.New("user is blocked")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidClient       = errors.New("invalid client")
	ErrInvalidScope        = errors.New("invalid scope")
	ErrInvalidRedirectURI  = errors.New("invalid redirect URI")
	ErrInvalidGrant        = errors.New("invalid grant")
	ErrInvalidCode         = errors.New("invalid code")
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExpired      = errors.New("session expired")
	ErrNotOrgMember        = errors.New("user is not a member of the organization")
	ErrSignupDenied        = errors.New("signup denied")
	ErrTooManyFailedLogins = errors.New("too many failed login attempts")
	ErrNotFound            = errors.New("not found")
	ErrUnsupported         = errors.New("unsupported operation")
)

// Error carries a Kind together with a user-visible message and an optional form field.
type Error struct {
	Kind    Kind
	Code    string // OAuth2 style error code, e.g. "login_required"
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind onto a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorizationDenied, KindLockedOut:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Validation returns a field-scoped validation error.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_request", Field: field, Message: message}
}

// NotFound returns a not-found error wrapping cause.
func NotFound(message string, cause error) *Error {
	if cause == nil {
		cause = ErrNotFound
	}
	return &Error{Kind: KindNotFound, Code: "invalid_request", Message: message, Err: cause}
}

// Denied returns an authorization-denied error.
func Denied(message string, cause error) *Error {
	return &Error{Kind: KindAuthorizationDenied, Code: "access_denied", Message: message, Err: cause}
}

// LockedOut returns the lockout error. It is the same for every caller so it leaks nothing
// about whether the submitted credential was correct.
func LockedOut() *Error {
	return &Error{
		Kind:    KindLockedOut,
		Code:    "too_many_attempts",
		Message: "Your account has been blocked after multiple consecutive login attempts.",
		Err:     ErrTooManyFailedLogins,
	}
}

// Transient wraps an infrastructure failure.
func Transient(message string, cause error) *Error {
	return &Error{Kind: KindTransient, Code: "server_error", Message: message, Err: cause}
}

// KindOf returns the kind of err, or KindTransient when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
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
