package identity

import "portal/internal/app/apperr"

// AuthError is a provider rejection whose Message is shown to the user as is.
// Err classifies it for status mapping.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func newAuthError(message string, kind error) *AuthError {
	return &AuthError{Message: message, Err: kind}
}

// provider messages shared by the local authenticator
const (
	messageEmailExists        = "EMAIL_EXISTS"
	messageInvalidEmail       = "INVALID_EMAIL"
	messageMissingPassword    = "MISSING_PASSWORD"
	messageWeakPassword       = "WEAK_PASSWORD : Password should be at least 6 characters"
	messageInvalidCredentials = "INVALID_LOGIN_CREDENTIALS"
	messageUserNotFound       = "USER_NOT_FOUND"
)

var (
	errEmailExists        = newAuthError(messageEmailExists, apperr.ErrConflict)
	errInvalidEmail       = newAuthError(messageInvalidEmail, apperr.ErrInvalidInput)
	errMissingPassword    = newAuthError(messageMissingPassword, apperr.ErrInvalidInput)
	errWeakPassword       = newAuthError(messageWeakPassword, apperr.ErrInvalidInput)
	errInvalidCredentials = newAuthError(messageInvalidCredentials, apperr.ErrUnauthorized)
	errUserNotFound       = newAuthError(messageUserNotFound, apperr.ErrNotFound)
)

const minPasswordLength = 6
