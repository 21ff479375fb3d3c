package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrEmailInUse is returned when registration hits an existing email, either
// via the fast-path lookup or the store's unique index.
var ErrEmailInUse = goerrors.New("Email in use", goerrors.CategoryConflict).
	WithTextCode("EMAIL_IN_USE").
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials collapses unknown email and wrong password into one
// message so callers cannot probe which emails are registered.
var ErrInvalidCredentials = goerrors.New("Email or password is wrong", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotVerified blocks login after the credentials already checked out.
var ErrEmailNotVerified = goerrors.New("Email is not verified", goerrors.CategoryAuth).
	WithTextCode("EMAIL_NOT_VERIFIED").
	WithCode(goerrors.CodeUnauthorized)

// ErrVerificationNotFound is the terminal answer for unknown or already
// consumed verification tokens.
var ErrVerificationNotFound = goerrors.New("Not found", goerrors.CategoryNotFound).
	WithTextCode("VERIFICATION_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrVerificationResend hides whether the email is unknown or already
// verified; both cases must stay indistinguishable.
var ErrVerificationResend = goerrors.New("Unable to send verification email", goerrors.CategoryValidation).
	WithTextCode("VERIFICATION_RESEND_REJECTED").
	WithCode(goerrors.CodeBadRequest)

// ErrUserNotFound is returned when an authenticated identity no longer
// resolves to a user record.
var ErrUserNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithTextCode("USER_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrNotAuthorized is the generic 401 for missing, malformed, expired, or
// revoked session tokens.
var ErrNotAuthorized = goerrors.New("Not authorized", goerrors.CategoryAuth).
	WithTextCode("NOT_AUTHORIZED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired marks a session credential past its expiry window.
var ErrTokenExpired = goerrors.New("Session token expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed marks a session credential that failed parsing or
// signature validation.
var ErrTokenMalformed = goerrors.New("Session token malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingFields is the pre-side-effect validation failure.
var ErrMissingFields = goerrors.New("Missing required field", goerrors.CategoryValidation).
	WithTextCode("MISSING_FIELDS").
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenExpired) ||
		hasTextCode(err, ErrTokenExpired.TextCode) ||
		strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenMalformed) ||
		hasTextCode(err, ErrTokenMalformed.TextCode) ||
		strings.Contains(err.Error(), "token is malformed")
}

func hasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}
