package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a matsift error code.
type ErrorCode string

const (
	ErrInvalidAtomicNumber ErrorCode = "INVALID_ATOMIC_NUMBER"
	ErrUnknownElement      ErrorCode = "UNKNOWN_ELEMENT"
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrCacheCorrupt        ErrorCode = "CACHE_CORRUPT"
	ErrCredentialInvalid   ErrorCode = "CREDENTIAL_INVALID"
	ErrRemoteQuery         ErrorCode = "REMOTE_QUERY_FAILURE"
	ErrCancelled           ErrorCode = "CANCELLED"
	ErrInternal            ErrorCode = "INTERNAL"
)

// SearchError represents a structured error with code and details.
type SearchError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *SearchError) Unwrap() error {
	return e.Err
}

// NewInvalidAtomicNumber creates an error for an atomic number outside the catalog range.
func NewInvalidAtomicNumber(z, max int) *SearchError {
	return &SearchError{
		Code:    ErrInvalidAtomicNumber,
		Message: fmt.Sprintf("atomic number %d outside [1, %d]", z, max),
		Details: map[string]any{"atomic_number": z, "max": max},
	}
}

// NewUnknownElement creates an error for a symbol the catalog does not know.
func NewUnknownElement(symbol string) *SearchError {
	return &SearchError{
		Code:    ErrUnknownElement,
		Message: fmt.Sprintf("unknown element symbol %q", symbol),
		Details: map[string]any{"symbol": symbol},
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *SearchError {
	return &SearchError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewNotFound creates an error for a missing cache entry or run.
func NewNotFound(identifier string) *SearchError {
	return &SearchError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewCacheCorrupt creates an error for a cache file that exists but cannot be parsed.
func NewCacheCorrupt(name string, err error) *SearchError {
	msg := fmt.Sprintf("cache for %q is corrupt", name)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &SearchError{
		Code:    ErrCacheCorrupt,
		Message: msg,
		Details: map[string]any{"search_name": name},
		Err:     err,
	}
}

// NewCredentialInvalid creates an error for an access key the remote service rejected.
func NewCredentialInvalid(err error) *SearchError {
	msg := "access key was rejected"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &SearchError{
		Code:    ErrCredentialInvalid,
		Message: msg,
		Err:     err,
	}
}

// NewRemoteQuery creates an error for a failed remote database query.
func NewRemoteQuery(err error) *SearchError {
	msg := "remote query failed"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &SearchError{
		Code:    ErrRemoteQuery,
		Message: msg,
		Err:     err,
	}
}

// NewCancelled creates an error for an operation stopped by context cancellation.
func NewCancelled(operation string) *SearchError {
	return &SearchError{
		Code:    ErrCancelled,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *SearchError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &SearchError{
		Code:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err (or anything it wraps) is a SearchError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *SearchError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// CodeOf returns the code of a SearchError, or ErrInternal for any other error.
func CodeOf(err error) ErrorCode {
	var sErr *SearchError
	if stderrors.As(err, &sErr) {
		return sErr.Code
	}
	return ErrInternal
}
