package models

import "errors"

// Engine errors are sentinels so callers can branch with errors.Is. Every
// mutation entry point returns one of these (or a validation error) before
// any state changes; nothing is ever partially applied.
var (
	ErrNotFound             = errors.New("record not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrAlreadyRefunded      = errors.New("transaction already refunded")
	ErrInvalidRefundTarget  = errors.New("transaction is not refundable")
	ErrShiftAlreadyOpen     = errors.New("a shift is already open for this branch")
	ErrNoActiveShift        = errors.New("no open shift for this branch")
	ErrCreditAlreadySettled = errors.New("credit entry already settled")
)

// ValidationError carries per-field failures from input validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	for field, tag := range e.Fields {
		return "invalid input: " + field + " (" + tag + ")"
	}
	return "invalid input"
}

func NewValidationError(field string, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
