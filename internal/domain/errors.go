package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeDependency    = "DEPENDENCY_ERROR"
	ErrCodeDecode        = "DECODE_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrNotPDF           = NewDomainError(ErrCodeValidation, "only PDF files are allowed")
	ErrFileTooLarge     = NewDomainError(ErrCodeValidation, "file size exceeds 10MB")
	ErrMissingTitle     = NewDomainError(ErrCodeValidation, "missing 'new_title' in request")
	ErrMissingQuestion  = NewDomainError(ErrCodeValidation, "question is required")
	ErrMissingSessionID = NewDomainError(ErrCodeValidation, "session_id is required")
)

// Not found errors
var (
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
	ErrTraceNotFound   = NewDomainError(ErrCodeNotFound, "reasoning trace not found")
)

// NewDependencyError wraps a failure from an external collaborator
// (vector index, embedding model, generative model, parser, store).
func NewDependencyError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeDependency, message, err)
}

// NewDecodeError wraps a locally-recoverable decode failure
// (chunk decompression, enrichment JSON parsing).
func NewDecodeError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeDecode, message, err)
}
