// Package apperr defines the error taxonomy shared by every domain package
// in the mesh hub. Several internal packages (store, acl, contract, a2a,
// federation) raise and translate the same error kinds, so the taxonomy
// lives here rather than in any one package; internal/api maps it to HTTP
// status codes.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a target entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when a credential is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when an ACL deny, ownership check, or
	// state-machine guard rejects an otherwise well-formed request.
	ErrForbidden = errors.New("forbidden")

	// ErrBadRequest is returned for malformed input.
	ErrBadRequest = errors.New("bad request")

	// ErrRateLimited is returned when a rate limiter check fails.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict is returned for uniqueness violations outside the
	// idempotency-replay path (duplicate bid, duplicate delivery, etc).
	ErrConflict = errors.New("conflict")

	// ErrAlreadyExists is returned when attempting to create a duplicate entity.
	ErrAlreadyExists = errors.New("already exists")
)

// ValidationError wraps field-specific validation errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
