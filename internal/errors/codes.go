package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error kind surfaced by the answering pipeline.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeConfigInvalid indicates a configuration that cannot be used.
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ErrCodeIndexCorrupt indicates persisted index artifacts that do not agree with each other.
	ErrCodeIndexCorrupt ErrorCode = "INDEX_CORRUPT"
	// ErrCodeVectorBackendUnavailable indicates the remote vector store could not be reached.
	ErrCodeVectorBackendUnavailable ErrorCode = "VECTOR_BACKEND_UNAVAILABLE"
	// ErrCodeEmbeddingFailed indicates the embedding provider failed.
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	// ErrCodeLLMUnavailable indicates the LLM service is not available.
	ErrCodeLLMUnavailable ErrorCode = "LLM_UNAVAILABLE"
	// ErrCodeQueryFailed indicates an analytics query failed.
	ErrCodeQueryFailed ErrorCode = "QUERY_FAILED"
	// ErrCodeServiceUnavailable indicates the service is not available.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// AppError represents a structured error with a machine readable code.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Convenience constructors for common error types.

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AppError {
	return &AppError{Code: ErrCodeInvalidArgument, Message: msg}
}

// ConfigInvalid creates a configuration error.
func ConfigInvalid(msg string) *AppError {
	return &AppError{Code: ErrCodeConfigInvalid, Message: msg}
}

// IndexCorrupt creates an index consistency error.
func IndexCorrupt(msg string) *AppError {
	return &AppError{Code: ErrCodeIndexCorrupt, Message: msg}
}

// VectorBackendUnavailable creates a remote vector store error.
func VectorBackendUnavailable(msg string, cause error) *AppError {
	return &AppError{Code: ErrCodeVectorBackendUnavailable, Message: msg, Cause: cause}
}

// EmbeddingFailed creates an embedding provider error.
func EmbeddingFailed(msg string, cause error) *AppError {
	return &AppError{Code: ErrCodeEmbeddingFailed, Message: msg, Cause: cause}
}

// LLMUnavailable creates an LLM unavailable error.
func LLMUnavailable(msg string, cause error) *AppError {
	return &AppError{Code: ErrCodeLLMUnavailable, Message: msg, Cause: cause}
}

// QueryFailed creates an analytics query error.
func QueryFailed(msg string, cause error) *AppError {
	return &AppError{Code: ErrCodeQueryFailed, Message: msg, Cause: cause}
}

// ServiceUnavailable creates a service unavailable error.
func ServiceUnavailable(msg string) *AppError {
	return &AppError{Code: ErrCodeServiceUnavailable, Message: msg}
}

// Timeout creates a timeout error.
func Timeout(msg string) *AppError {
	return &AppError{Code: ErrCodeTimeout, Message: msg}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: cause}
}

// IsCode reports whether any error in the chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// GetCodeFromError extracts the outermost error code from any error.
// Returns the provided default code if the chain holds no AppError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return defaultCode
}
