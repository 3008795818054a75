package domain

import "github.com/cockroachdb/errors"

var (
	ErrInvalidInput             = errors.New("invalid input")
	ErrValidationFailed         = errors.New("validation failed")
	ErrDuplicateBooking         = errors.New("duplicate booking")
	ErrNotFound                 = errors.New("not found")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrAlreadyCancelled         = errors.New("already cancelled")
	ErrCancellationWindowClosed = errors.New("cancellation window closed")
	ErrStoreUnavailable         = errors.New("store unavailable")
	ErrInconsistentIndex        = errors.New("inconsistent index")
)

// ValidationError carries the rejected field alongside a human-readable
// reason. It matches ErrValidationFailed under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
