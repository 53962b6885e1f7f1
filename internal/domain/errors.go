package domain

import (
	"errors"
	"fmt"
)

// ErrAlreadyCheckedOut is returned when checkout is attempted on a visitor that has already left.
var ErrAlreadyCheckedOut = errors.New("visitor already checked out")

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// AuthError covers missing, invalid and expired credentials.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return e.Reason
}

// StorageError wraps a persistence failure. It is never retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrUsernameTaken is returned when creating a user whose username already exists.
var ErrUsernameTaken = errors.New("username already exists")
