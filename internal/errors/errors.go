// Package errors provides the error taxonomy used across the graph engine,
// its synchronization adapters and the hosts that surface failures to users.
//
// Every failure that crosses a package boundary is a *UnifiedError built with
// the fluent ErrorBuilder, so callers can classify it with the Is* helpers
// regardless of which layer produced it.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ============================================================================
// ERROR TYPES AND CLASSIFICATION
// ============================================================================

// ErrorType defines the category of error for proper handling and response.
type ErrorType string

const (
	// Graph synchronization errors
	ErrorTypeFetch       ErrorType = "FETCH"
	ErrorTypeMutation    ErrorType = "MUTATION"
	ErrorTypePartialLink ErrorType = "PARTIAL_LINK"
	ErrorTypeInvariant   ErrorType = "INVARIANT"

	// Request errors
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeState      ErrorType = "STATE"

	// Infrastructure errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeConnection  ErrorType = "CONNECTION"
	ErrorTypeRateLimit   ErrorType = "RATE_LIMIT"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
)

// ErrorSeverity defines the severity level for logging and monitoring.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// ============================================================================
// UNIFIED ERROR STRUCTURE
// ============================================================================

// UnifiedError is the single error type returned by the engine and its adapters.
type UnifiedError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	Operation string `json:"operation,omitempty"`
	Resource  string `json:"resource,omitempty"`
	RequestID string `json:"requestId,omitempty"`

	Severity   ErrorSeverity `json:"severity"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
	Cause      error         `json:"-"`

	// LinkFailures is populated for PARTIAL_LINK errors, one entry per
	// requested link that the store rejected.
	LinkFailures []LinkFailure `json:"linkFailures,omitempty"`

	File string `json:"-"`
	Line int    `json:"-"`
}

// LinkFailure describes a single rejected link request.
type LinkFailure struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Error implements the error interface.
func (e *UnifiedError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with the underlying cause.
func (e *UnifiedError) Unwrap() error {
	return e.Cause
}

// String provides a detailed representation for debug logging.
func (e *UnifiedError) String() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Error: %s\n", e.Error()))
	if e.Operation != "" {
		builder.WriteString(fmt.Sprintf("Operation: %s\n", e.Operation))
	}
	if e.Resource != "" {
		builder.WriteString(fmt.Sprintf("Resource: %s\n", e.Resource))
	}
	builder.WriteString(fmt.Sprintf("Severity: %s\n", e.Severity))
	builder.WriteString(fmt.Sprintf("Retryable: %t\n", e.Retryable))
	for _, f := range e.LinkFailures {
		builder.WriteString(fmt.Sprintf("Link %s -> %s: %s\n", f.FromID, f.ToID, f.Reason))
	}
	if e.Cause != nil {
		builder.WriteString(fmt.Sprintf("Cause: %v\n", e.Cause))
	}
	if e.File != "" && e.Line > 0 {
		builder.WriteString(fmt.Sprintf("Location: %s:%d\n", e.File, e.Line))
	}
	return builder.String()
}

// ============================================================================
// ERROR BUILDER FOR FLUENT CONSTRUCTION
// ============================================================================

// ErrorBuilder provides a fluent interface for constructing UnifiedError instances.
type ErrorBuilder struct {
	error *UnifiedError
}

// NewError creates a new error builder with the specified type and message.
func NewError(errType ErrorType, code, message string) *ErrorBuilder {
	_, file, line, _ := runtime.Caller(1)

	return &ErrorBuilder{
		error: &UnifiedError{
			Type:     errType,
			Code:     code,
			Message:  message,
			Severity: SeverityMedium,
			File:     file,
			Line:     line,
		},
	}
}

// WithDetails adds additional details to the error.
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.error.Details = details
	return b
}

// WithOperation specifies the operation that failed.
func (b *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	b.error.Operation = operation
	return b
}

// WithResource specifies the resource being operated on.
func (b *ErrorBuilder) WithResource(resource string) *ErrorBuilder {
	b.error.Resource = resource
	return b
}

// WithRequestID adds request tracing information.
func (b *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	b.error.RequestID = requestID
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.error.Severity = severity
	return b
}

// WithRetryable marks the error as retryable.
func (b *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	b.error.Retryable = retryable
	return b
}

// WithRetryAfter sets how long to wait before retrying.
func (b *ErrorBuilder) WithRetryAfter(duration time.Duration) *ErrorBuilder {
	b.error.RetryAfter = duration
	b.error.Retryable = true
	return b
}

// WithCause adds the underlying cause error.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.error.Cause = cause
	return b
}

// WithLinkFailures attaches the per-link failures of a partial link operation.
func (b *ErrorBuilder) WithLinkFailures(failures []LinkFailure) *ErrorBuilder {
	b.error.LinkFailures = append(b.error.LinkFailures[:0:0], failures...)
	return b
}

// Build returns the constructed UnifiedError.
func (b *ErrorBuilder) Build() *UnifiedError {
	return b.error
}

// ============================================================================
// CONVENIENCE CONSTRUCTORS
// ============================================================================

// Fetch creates an error for a failed graph fetch. The previous model is kept.
func Fetch(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeFetch, code, message).
		WithSeverity(SeverityMedium).
		WithRetryable(true)
}

// Mutation creates an error for a rejected create/link/delete request.
func Mutation(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeMutation, code, message).
		WithSeverity(SeverityMedium).
		WithRetryable(false)
}

// PartialLink creates an error reporting that some requested links failed
// while the primary operation succeeded.
func PartialLink(code, message string) *ErrorBuilder {
	return NewError(ErrorTypePartialLink, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(false)
}

// Invariant creates an error describing data that breaks a model invariant.
func Invariant(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeInvariant, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(false)
}

// Validation creates a validation error.
func Validation(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeValidation, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(false)
}

// NotFound creates a not found error.
func NotFound(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeNotFound, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(false)
}

// Conflict creates a conflict error.
func Conflict(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeConflict, code, message).
		WithSeverity(SeverityMedium).
		WithRetryable(false)
}

// State creates an error for an operation not allowed in the current
// interaction state.
func State(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeState, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(false)
}

// Internal creates an internal error.
func Internal(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeInternal, code, message).
		WithSeverity(SeverityHigh).
		WithRetryable(false)
}

// Timeout creates a timeout error.
func Timeout(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeTimeout, code, message).
		WithSeverity(SeverityMedium).
		WithRetryable(true)
}

// Connection creates a connection error.
func Connection(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeConnection, code, message).
		WithSeverity(SeverityHigh).
		WithRetryable(true)
}

// Unavailable creates an error for a dependency that refuses requests,
// such as an open circuit breaker.
func Unavailable(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeUnavailable, code, message).
		WithSeverity(SeverityHigh).
		WithRetryable(true)
}

// ============================================================================
// ERROR CLASSIFICATION AND CHECKING
// ============================================================================

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Type == errType
	}
	return false
}

// IsFetch reports whether err is a fetch failure.
func IsFetch(err error) bool { return IsType(err, ErrorTypeFetch) }

// IsMutation reports whether err is a rejected mutation.
func IsMutation(err error) bool { return IsType(err, ErrorTypeMutation) }

// IsPartialLink reports whether err carries per-link failures.
func IsPartialLink(err error) bool { return IsType(err, ErrorTypePartialLink) }

// IsInvariant reports whether err describes a model invariant violation.
func IsInvariant(err error) bool { return IsType(err, ErrorTypeInvariant) }

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool { return IsType(err, ErrorTypeConflict) }

// IsState checks if an error was caused by the interaction state.
func IsState(err error) bool { return IsType(err, ErrorTypeState) }

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Retryable
	}
	return false
}

// GetSeverity returns the severity of an error.
func GetSeverity(err error) ErrorSeverity {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Severity
	}
	return SeverityMedium
}

// LinkFailures returns the per-link failures carried by err, if any.
func LinkFailures(err error) []LinkFailure {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.LinkFailures
	}
	return nil
}

// As is re-exported so callers importing this package under the name errors
// keep access to the standard helper.
func As(err error, target any) bool { return errors.As(err, target) }

// Is is re-exported for the same reason as As.
func Is(err, target error) bool { return errors.Is(err, target) }

// ============================================================================
// ERROR WRAPPING AND CONTEXT PRESERVATION
// ============================================================================

// Wrap wraps an existing error with additional context while preserving the
// original error chain.
func Wrap(err error, operation, message string) *UnifiedError {
	if err == nil {
		return nil
	}

	var existingErr *UnifiedError
	if errors.As(err, &existingErr) {
		return &UnifiedError{
			Type:         existingErr.Type,
			Code:         existingErr.Code,
			Message:      message,
			Details:      existingErr.Message,
			Operation:    operation,
			Resource:     existingErr.Resource,
			RequestID:    existingErr.RequestID,
			Severity:     existingErr.Severity,
			Retryable:    existingErr.Retryable,
			RetryAfter:   existingErr.RetryAfter,
			LinkFailures: existingErr.LinkFailures,
			Cause:        err,
			File:         existingErr.File,
			Line:         existingErr.Line,
		}
	}

	_, file, line, _ := runtime.Caller(1)
	return &UnifiedError{
		Type:      ErrorTypeInternal,
		Code:      CodeWrapError.String(),
		Message:   message,
		Details:   err.Error(),
		Operation: operation,
		Severity:  SeverityMedium,
		Cause:     err,
		File:      file,
		Line:      line,
	}
}

// AsFetch converts any store error into a FETCH error, keeping retryability
// from the cause.
func AsFetch(err error, operation string) *UnifiedError {
	if err == nil {
		return nil
	}
	if IsFetch(err) {
		var ue *UnifiedError
		errors.As(err, &ue)
		return ue
	}
	return Fetch(CodeFetchFailed.String(), "Failed to fetch graph").
		WithOperation(operation).
		WithDetails(err.Error()).
		WithRetryable(IsRetryable(err)).
		WithCause(err).
		Build()
}

// AsMutation converts any store error into a MUTATION error. Validation and
// not-found causes are kept as the mutation's code so hosts can map status codes.
func AsMutation(err error, operation, resource string) *UnifiedError {
	if err == nil {
		return nil
	}
	if IsMutation(err) {
		var ue *UnifiedError
		errors.As(err, &ue)
		return ue
	}
	code := CodeMutationFailed.String()
	var ue *UnifiedError
	if errors.As(err, &ue) && ue.Code != "" {
		code = ue.Code
	}
	return Mutation(code, fmt.Sprintf("Failed to %s", operation)).
		WithOperation(operation).
		WithResource(resource).
		WithDetails(err.Error()).
		WithRetryable(IsRetryable(err)).
		WithCause(err).
		Build()
}
