package sloth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeAccountNotFound marks lookups for unknown emails or ids.
	TextCodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	// TextCodeInvalidEntryCode marks a code that does not match the stored login token.
	TextCodeInvalidEntryCode = "INVALID_ENTRY_CODE"
	// TextCodeInvalidRefreshToken marks a refresh token that failed verification.
	TextCodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
)

// ErrInvalidEmail is returned for addresses that fail the shape check.
var ErrInvalidEmail = goerrors.New("invalid email address", goerrors.CategoryValidation).
	WithTextCode("INVALID_EMAIL").
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidEntryCode is returned when a login code does not verify. It is
// deliberately indistinguishable from an unknown code to the client.
var ErrInvalidEntryCode = goerrors.New("invalid entry code", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidEntryCode).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotFound is returned for unknown emails or ids. Route handlers
// must treat it like any auth failure and never leak it to the client.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidRefreshToken is returned when the refresh flow is attempted with
// a token that did not verify cleanly.
var ErrInvalidRefreshToken = goerrors.New("invalid refresh token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefreshToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is the codec's fail-closed result for anything that is
// not a structurally valid, correctly signed token.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// ErrUnknownEvent is returned by the notifier for event kinds it has no
// template for; no network call is made.
var ErrUnknownEvent = goerrors.New("unknown notification event", goerrors.CategoryValidation).
	WithTextCode("UNKNOWN_EVENT").
	WithCode(goerrors.CodeBadRequest)

// ErrCreateContention is returned when account creation keeps losing the
// conditional commit on the meta counter.
var ErrCreateContention = goerrors.New("account creation contention", goerrors.CategoryConflict).
	WithTextCode("CREATE_CONTENTION").
	WithCode(goerrors.CodeConflict)

// IsAuthError reports whether err belongs to the auth category, i.e. the
// redirect-and-clear class rather than a server fault.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryAuth
	}
	return false
}

// IsValidationError reports whether err is a bad-input condition that maps
// to a 400 without any state change.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryValidation
	}
	return false
}
