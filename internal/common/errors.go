package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")

	// Extraction sentinels
	ErrEmptyScan        = errors.New("scan has no usable text")
	ErrNoRequiredFields = errors.New("no record with required fields")
	ErrInvalidScanType  = errors.New("invalid scan type")

	// Persistence sentinels
	ErrDuplicateScan   = errors.New("scan content already ingested")
	ErrReferenceFormat = errors.New("reference set is malformed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewValidationError(message string) *AppError {
	return NewAppError("VALIDATION_ERROR", message, ErrValidation)
}

func NewValidationErrorf(format string, args ...interface{}) *AppError {
	return NewValidationError(fmt.Sprintf(format, args...))
}

func NewNotFoundError(message string) *AppError {
	return NewAppError("NOT_FOUND", message, ErrNotFound)
}

func NewConflictError(message string, cause error) *AppError {
	return NewAppError("CONFLICT", message, cause)
}
