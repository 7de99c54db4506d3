package paywall

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

const (
	// TextCodeInvalidCreds is the shared code for any credential failure
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeTokenExpired marks expired tokens
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed marks unparseable or badly signed tokens
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeTooManyAttempts marks login attempt throttling
	TextCodeTooManyAttempts = "TOO_MANY_ATTEMPTS"
	// TextCodePaymentRequired marks missing entitlement
	TextCodePaymentRequired = "PAYMENT_REQUIRED"
	// TextCodeDuplicateEmail marks registration conflicts
	TextCodeDuplicateEmail = "DUPLICATE_EMAIL"
	// TextCodeProviderError marks payment provider failures
	TextCodeProviderError = "PAYMENT_PROVIDER_ERROR"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword covers both unknown identifiers and wrong
// passwords so callers cannot tell the two apart.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty secrets before hashing
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is returned for structurally valid tokens past their expiry
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed covers unparseable tokens and signature mismatches
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims is returned when a parsed token carries foreign claims
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts enforces the login cooldown window
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrPaymentRequired is returned by the entitlement gate for unpaid callers
var ErrPaymentRequired = errors.New("payment required", errors.CategoryAuthz).
	WithTextCode(TextCodePaymentRequired).
	WithCode(http.StatusPaymentRequired)

// ErrDuplicateEmail is returned when a registration hits the unique email
// constraint. The first user's row is left untouched.
var ErrDuplicateEmail = errors.New("an account with that email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeConflict)

// ErrPaymentProvider is the generic caller-facing provider failure; the
// underlying cause is logged, never surfaced.
var ErrPaymentProvider = errors.New("payment provider error", errors.CategoryInternal).
	WithTextCode(TextCodeProviderError).
	WithCode(errors.CodeInternal)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return errors.Is(err, ErrTokenExpired) || hasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError will check for malformed or badly signed tokens
func IsMalformedError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) || hasTextCode(err, TextCodeTokenMalformed)
}

// hasTextCode matches the text code on the first rich error in the chain.
// Rendered messages are sanitized, so classification never reads them.
func hasTextCode(err error, code string) bool {
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.TextCode == code
	}
	return false
}

// IsUniqueViolation detects unique constraint failures across the dialects we
// run against (sqlite in development, postgres in production). Mapped driver
// errors carry the duplicate category; unmapped ones keep the constraint text
// on a source error further down the chain.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if repository.IsDuplicatedKey(err) {
		return true
	}
	return hasUniqueViolationText(err)
}

func hasUniqueViolationText(err error) bool {
	if err == nil {
		return false
	}

	var msg string
	var rich *errors.Error
	if stderrors.As(err, &rich) && rich != nil {
		// rich errors render a sanitized message, inspect the raw one
		msg = rich.Message
		err = rich
	} else {
		msg = err.Error()
	}

	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "constraint failed: UNIQUE") {
		return true
	}

	switch source := err.(type) {
	case interface{ Unwrap() error }:
		return hasUniqueViolationText(source.Unwrap())
	case interface{ Unwrap() []error }:
		for _, joined := range source.Unwrap() {
			if hasUniqueViolationText(joined) {
				return true
			}
		}
	}
	return false
}
