package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeDuplicateLogin identifies a login uniqueness violation
	TextCodeDuplicateLogin = "DUPLICATE_LOGIN"
	// TextCodeDuplicateEmail identifies an email uniqueness violation
	TextCodeDuplicateEmail = "DUPLICATE_EMAIL"
	// TextCodeInvalidKey covers unknown, already used, and expired keys alike
	// so callers cannot probe which of the three it was.
	TextCodeInvalidKey = "INVALID_OR_EXPIRED_KEY"
	// TextCodeValidation identifies a field-scoped validation failure
	TextCodeValidation = "VALIDATION_FAILED"
	// TextCodeEmptyPassword identifies an empty password input
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
	// TextCodeInvalidCreds identifies a failed credential comparison
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeMailDelivery identifies a failed notification render/dispatch
	TextCodeMailDelivery = "MAIL_DELIVERY_FAILED"
)

// ErrDuplicateLogin is returned when a login is already taken, whether the
// collision is caught at the pre-check or at write time.
var ErrDuplicateLogin = goerrors.New("login is already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateLogin).
	WithMetadata(map[string]any{"field": "login"})

// ErrDuplicateEmail is the email counterpart of ErrDuplicateLogin.
var ErrDuplicateEmail = goerrors.New("email is already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithMetadata(map[string]any{"field": "email"})

// ErrInvalidOrExpiredKey is returned for any unredeemable activation or reset
// key. It is deliberately undifferentiated.
var ErrInvalidOrExpiredKey = goerrors.New("invalid or expired key", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidKey).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountNotFound is returned on failed lookups in authenticated contexts
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString is returned when a value that must be present is empty
var ErrNoEmptyString = goerrors.New("value cannot be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrMismatchedHashAndPassword is returned when a cleartext password does not
// match the stored hash.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// NewValidationError builds a field-scoped validation error so callers can
// render precise feedback per field.
func NewValidationError(field, reason string) *goerrors.Error {
	return goerrors.New(reason, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"field":  field,
			"reason": reason,
		})
}

// HasTextCode will check a rich error for the given text code
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsDuplicateLogin will check for login uniqueness violations
func IsDuplicateLogin(err error) bool {
	return HasTextCode(err, TextCodeDuplicateLogin)
}

// IsDuplicateEmail will check for email uniqueness violations
func IsDuplicateEmail(err error) bool {
	return HasTextCode(err, TextCodeDuplicateEmail)
}

// IsInvalidKey will check for unredeemable activation/reset keys
func IsInvalidKey(err error) bool {
	return HasTextCode(err, TextCodeInvalidKey)
}

// IsValidationError will check for field-scoped validation failures
func IsValidationError(err error) bool {
	return HasTextCode(err, TextCodeValidation)
}

// ValidationField extracts the offending field from a validation error.
func ValidationField(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return "", false
	}
	field, ok := richErr.Metadata["field"].(string)
	return field, ok && field != ""
}

// IsUniqueConstraintError will check for storage-level uniqueness violations.
// Driver errors are not typed across sqlite/postgres, so we match messages.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// DuplicateFromConstraint maps a write-time uniqueness violation onto the
// duplicate sentinel for the column it names. Concurrent registrations race
// past the pre-check; the loser must still see a typed duplicate error.
func DuplicateFromConstraint(err error) error {
	if !IsUniqueConstraintError(err) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "email") {
		return ErrDuplicateEmail
	}
	if strings.Contains(msg, "login") {
		return ErrDuplicateLogin
	}
	return goerrors.Wrap(err, goerrors.CategoryConflict, "account uniqueness violation")
}
