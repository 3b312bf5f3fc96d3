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

// Stage error taxonomy. Stage-local errors are converted into the document's
// terminal outcome at the orchestrator; they never abort a batch.
var (
	ErrInvalidDocument      = errors.New("invalid document")
	ErrExtractionIncomplete = errors.New("extraction incomplete") // soft: no machine-readable text
	ErrClassification       = errors.New("classification failed")
	ErrDuplicateCheck       = errors.New("duplicate check failed")
	ErrWrite                = errors.New("write failed")
	ErrInvalidInput         = errors.New("invalid input")
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
