package chathistory

import (
	"errors"
	"fmt"
)

var (
	// ErrThreadNotFound indicates the thread was not found in the store.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrInvalidImport indicates imported data was not a JSON array of threads.
	ErrInvalidImport = errors.New("invalid import data")

	// ErrQuotaExceeded indicates a write would exceed the storage
	// medium's capacity.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Error codes for StoreError.
const (
	ErrCodeStorage    = "STORAGE_ERROR"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
)

// StoreError is a typed error with a machine-readable code.
type StoreError struct {
	// Code categorizes the error.
	Code string

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a StoreError for a storage failure.
func NewStorageError(message string, err error) *StoreError {
	return &StoreError{Code: ErrCodeStorage, Message: message, Err: err}
}

// NewValidationError creates a StoreError for invalid input.
func NewValidationError(message string, err error) *StoreError {
	return &StoreError{Code: ErrCodeValidation, Message: message, Err: err}
}

// NewNotFoundError creates a StoreError for a missing resource.
func NewNotFoundError(resource, id string) *StoreError {
	return &StoreError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, id),
		Err:     ErrThreadNotFound,
	}
}
