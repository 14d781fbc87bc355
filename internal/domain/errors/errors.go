package errors

import (
	"errors"
	"fmt"
)

var (
	// Commission errors
	ErrCommissionNotFound   = errors.New("commission not found")
	ErrInvalidCommissionID  = errors.New("invalid commission id")
	ErrNotACommissionRecord = errors.New("commission is not a record")
	ErrMissingAmount        = errors.New("commission amount missing")
	ErrInvalidAmount        = errors.New("invalid commission amount")
	ErrInvalidStatus        = errors.New("invalid commission status")

	// Order errors
	ErrOrderNotFound    = errors.New("order not found")
	ErrNotAnOrderRecord = errors.New("order is not a record")

	// Storage errors
	ErrStorageUnavailable = errors.New("commission storage unavailable")

	// Idempotency errors
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Lock errors
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidationFailed) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
