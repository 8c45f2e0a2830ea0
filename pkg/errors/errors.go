// Package errors provides typed errors for the application
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType int

const (
	ErrorTypeValidation ErrorType = iota
	ErrorTypeNotFound
	ErrorTypeConflict
	ErrorTypePermission
	ErrorTypeInternal
	ErrorTypeConfig
	ErrorTypeExtraction
	ErrorTypeFormatUnavailable
	ErrorTypeSizeExceeded
	ErrorTypeUpload
	ErrorTypeTransport
	ErrorTypeCapacity
)

// String returns a short label used in logs and metrics
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeConflict:
		return "conflict"
	case ErrorTypePermission:
		return "permission"
	case ErrorTypeConfig:
		return "config"
	case ErrorTypeExtraction:
		return "extraction"
	case ErrorTypeFormatUnavailable:
		return "format_unavailable"
	case ErrorTypeSizeExceeded:
		return "size_exceeded"
	case ErrorTypeUpload:
		return "upload"
	case ErrorTypeTransport:
		return "transport"
	case ErrorTypeCapacity:
		return "capacity"
	default:
		return "internal"
	}
}

// baseError is the base implementation for all error types
type baseError struct {
	kind  ErrorType
	msg   string
	cause error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Unwrap returns the wrapped cause, if any
func (e *baseError) Unwrap() error {
	return e.cause
}

// Kind returns the error type
func (e *baseError) Kind() ErrorType {
	return e.kind
}

// Message returns the message without the wrapped cause.
// It is safe to show to end users.
func (e *baseError) Message() string {
	return e.msg
}

// ValidationError represents a validation error (400)
type ValidationError struct {
	baseError
}

// NewValidationError creates a new ValidationError
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{baseError{kind: ErrorTypeValidation, msg: msg}}
}

// NotFoundError represents a not found error (404)
type NotFoundError struct {
	baseError
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(msg string) *NotFoundError {
	return &NotFoundError{baseError{kind: ErrorTypeNotFound, msg: msg}}
}

// ConflictError represents a conflict error (409)
type ConflictError struct {
	baseError
}

// NewConflictError creates a new ConflictError
func NewConflictError(msg string) *ConflictError {
	return &ConflictError{baseError{kind: ErrorTypeConflict, msg: msg}}
}

// PermissionError represents a permission error (403)
type PermissionError struct {
	baseError
}

// NewPermissionError creates a new PermissionError
func NewPermissionError(msg string) *PermissionError {
	return &PermissionError{baseError{kind: ErrorTypePermission, msg: msg}}
}

// InternalError represents an internal server error (500)
type InternalError struct {
	baseError
}

// NewInternalError creates a new InternalError
func NewInternalError(msg string) *InternalError {
	return &InternalError{baseError{kind: ErrorTypeInternal, msg: msg}}
}

// ConfigError is returned for missing or malformed configuration
type ConfigError struct {
	baseError
}

// NewConfigError creates a new ConfigError
func NewConfigError(msg string) *ConfigError {
	return &ConfigError{baseError{kind: ErrorTypeConfig, msg: msg}}
}

// ExtractionError is returned when the video cannot be probed or downloaded
type ExtractionError struct {
	baseError
}

// NewExtractionError creates a new ExtractionError wrapping cause
func NewExtractionError(msg string, cause error) *ExtractionError {
	return &ExtractionError{baseError{kind: ErrorTypeExtraction, msg: msg, cause: cause}}
}

// FormatUnavailableError is returned when neither the requested format nor a lower fallback exists
type FormatUnavailableError struct {
	baseError
	Requested string
}

// NewFormatUnavailableError creates a new FormatUnavailableError
func NewFormatUnavailableError(requested string) *FormatUnavailableError {
	return &FormatUnavailableError{
		baseError: baseError{kind: ErrorTypeFormatUnavailable, msg: fmt.Sprintf("format %s is not available", requested)},
		Requested: requested,
	}
}

// SizeExceededError is returned when a download grows past the configured ceiling
type SizeExceededError struct {
	baseError
	SizeBytes  int64
	LimitBytes int64
}

// NewSizeExceededError creates a new SizeExceededError
func NewSizeExceededError(size, limit int64) *SizeExceededError {
	return &SizeExceededError{
		baseError:  baseError{kind: ErrorTypeSizeExceeded, msg: fmt.Sprintf("file size exceeds the %d MB limit", limit>>20)},
		SizeBytes:  size,
		LimitBytes: limit,
	}
}

// UploadError is returned after every hosting server and attempt was used up
type UploadError struct {
	baseError
	Attempts int
}

// NewUploadError creates a new UploadError wrapping the last failure
func NewUploadError(attempts int, cause error) *UploadError {
	return &UploadError{
		baseError: baseError{kind: ErrorTypeUpload, msg: fmt.Sprintf("upload failed after %d attempts", attempts), cause: cause},
		Attempts:  attempts,
	}
}

// TransportError wraps chat API failures
type TransportError struct {
	baseError
}

// NewTransportError creates a new TransportError wrapping cause
func NewTransportError(msg string, cause error) *TransportError {
	return &TransportError{baseError{kind: ErrorTypeTransport, msg: msg, cause: cause}}
}

// CapacityError is returned when every download slot is taken
type CapacityError struct {
	baseError
	Capacity int
}

// NewCapacityError creates a new CapacityError
func NewCapacityError(capacity int) *CapacityError {
	return &CapacityError{
		baseError: baseError{kind: ErrorTypeCapacity, msg: "at capacity"},
		Capacity:  capacity,
	}
}

// kinded is implemented by every error in this package
type kinded interface {
	error
	Kind() ErrorType
	Message() string
}

// KindOf returns the type of the first typed error in err's chain.
// Untyped errors are reported as ErrorTypeInternal.
func KindOf(err error) ErrorType {
	var k kinded
	if stderrors.As(err, &k) {
		return k.Kind()
	}
	return ErrorTypeInternal
}

// PublicMessage returns the user-safe message of the first typed error in err's chain
func PublicMessage(err error) (string, bool) {
	var k kinded
	if stderrors.As(err, &k) {
		return k.Message(), true
	}
	return "", false
}

// IsValidationError checks if error is a ValidationError
func IsValidationError(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

// IsNotFoundError checks if error is a NotFoundError
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return stderrors.As(err, &target)
}

// IsConflictError checks if error is a ConflictError
func IsConflictError(err error) bool {
	var target *ConflictError
	return stderrors.As(err, &target)
}

// IsPermissionError checks if error is a PermissionError
func IsPermissionError(err error) bool {
	var target *PermissionError
	return stderrors.As(err, &target)
}

// IsInternalError checks if error is an InternalError
func IsInternalError(err error) bool {
	var target *InternalError
	return stderrors.As(err, &target)
}

// IsConfigError checks if error is a ConfigError
func IsConfigError(err error) bool {
	var target *ConfigError
	return stderrors.As(err, &target)
}

// IsSizeExceededError checks if error is a SizeExceededError
func IsSizeExceededError(err error) bool {
	var target *SizeExceededError
	return stderrors.As(err, &target)
}

// IsCapacityError checks if error is a CapacityError
func IsCapacityError(err error) bool {
	var target *CapacityError
	return stderrors.As(err, &target)
}
