package auth

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
)

// Error codes returned in front-channel and token endpoint error responses.
const (
	CodeLoginRequired       = "login_required"
	CodeInteractionRequired = "interaction_required"
	CodeAccessDenied        = "access_denied"
	CodeInvalidRequest      = "invalid_request"
	CodeInvalidClient       = "invalid_client"
	CodeInvalidGrant        = "invalid_grant"
	CodeUnsupportedGrant    = "unsupported_grant_type"
	CodeUnauthorizedClient  = "unauthorized_client"
)

func errSessionExpired() *apperrors.Error {
	return apperrors.NotFound("Your session has expired. Please start again.", apperrors.ErrSessionExpired)
}

func notFound(message string, cause error) *apperrors.Error {
	return apperrors.NotFound(message, cause)
}

func transient(context string, cause error) *apperrors.Error {
	return apperrors.Transient("Something went wrong, please try again later.", fmt.Errorf("%s: %w", context, cause))
}

func invalidClient(message string) *apperrors.Error {
	return &apperrors.Error{Kind: apperrors.KindValidation, Code: CodeInvalidClient, Message: message, Err: apperrors.ErrInvalidClient}
}

func invalidGrant(message string) *apperrors.Error {
	return &apperrors.Error{Kind: apperrors.KindValidation, Code: CodeInvalidGrant, Message: message, Err: apperrors.ErrInvalidGrant}
}

func invalidRequest(message string, cause error) *apperrors.Error {
	return &apperrors.Error{Kind: apperrors.KindValidation, Code: CodeInvalidRequest, Message: message, Err: cause}
}

// invalidCode is the field error shown on the enter-code and reset-password screens for
// unknown, expired and already used codes alike.
func invalidCode() *apperrors.Error {
	return &apperrors.Error{
		Kind:    apperrors.KindNotFound,
		Code:    CodeInvalidGrant,
		Field:   "code",
		Message: "The code you entered is invalid or has expired.",
		Err:     apperrors.ErrInvalidCode,
	}
}

func invalidCredentials() *apperrors.Error {
	return &apperrors.Error{
		Kind:    apperrors.KindValidation,
		Code:    CodeInvalidGrant,
		Field:   "password",
		Message: "Wrong email or password.",
		Err:     apperrors.ErrInvalidCredentials,
	}
}

func loginRequired() *apperrors.Error {
	return &apperrors.Error{Kind: apperrors.KindAuthorizationDenied, Code: CodeLoginRequired, Message: "Login required", Err: apperrors.ErrSessionNotFound}
}

// errorCode returns the OAuth error code carried by err.
func errorCode(err error) string {
	var e *apperrors.Error
	if apperrors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return "server_error"
}

// errorDescription returns the user-visible message of err without internal causes.
func errorDescription(err error) string {
	var e *apperrors.Error
	if apperrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Something went wrong, please try again later."
}

func unauthorizedClient(message string) *apperrors.Error {
	return &apperrors.Error{Kind: apperrors.KindAuthorizationDenied, Code: CodeUnauthorizedClient, Message: message, Err: apperrors.ErrInvalidClient}
}
