package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// FromStoreError classifies an error returned by a graph store client.
// AWS API errors are mapped by error code; anything else falls back to
// message patterns. A nil error yields nil.
func FromStoreError(err error, operation, resource string) *UnifiedError {
	if err == nil {
		return nil
	}

	var existing *UnifiedError
	if errors.As(err, &existing) {
		return existing
	}

	if unifiedErr := fromAPIError(err, operation, resource); unifiedErr != nil {
		return unifiedErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(CodeTimeout.String(), "Operation timed out").
			WithOperation(operation).
			WithResource(resource).
			WithCause(err).
			Build()
	}
	if errors.Is(err, context.Canceled) {
		return Internal(CodeInternal.String(), "Operation canceled").
			WithOperation(operation).
			WithResource(resource).
			WithSeverity(SeverityLow).
			WithCause(err).
			Build()
	}

	if unifiedErr := fromMessagePattern(err, operation, resource); unifiedErr != nil {
		return unifiedErr
	}

	return Internal(CodeDatabaseError.String(), fmt.Sprintf("Store operation failed: %s", operation)).
		WithOperation(operation).
		WithResource(resource).
		WithDetails(err.Error()).
		WithCause(err).
		Build()
}

func fromAPIError(err error, operation, resource string) *UnifiedError {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return nil
	}

	switch ae.ErrorCode() {
	case "ResourceNotFoundException":
		return NotFound(CodeDatabaseError.String(), "Table or resource not found").
			WithOperation(operation).
			WithResource(resource).
			WithDetails(ae.ErrorMessage()).
			WithCause(err).
			Build()

	case "ConditionalCheckFailedException":
		return Conflict(CodeConditionFailed.String(), "Conditional check failed").
			WithOperation(operation).
			WithResource(resource).
			WithDetails(ae.ErrorMessage()).
			WithCause(err).
			Build()

	case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
		return NewError(ErrorTypeRateLimit, CodeRateLimitExceeded.String(), "Store throughput exceeded").
			WithOperation(operation).
			WithResource(resource).
			WithRetryAfter(1).
			WithCause(err).
			Build()

	case "InternalServerError":
		return Internal(CodeDatabaseError.String(), "Store internal error").
			WithOperation(operation).
			WithResource(resource).
			WithRetryable(true).
			WithCause(err).
			Build()

	case "ServiceUnavailable":
		return Unavailable(CodeServiceUnavailable.String(), "Store service unavailable").
			WithOperation(operation).
			WithResource(resource).
			WithCause(err).
			Build()

	case "ValidationException":
		return Validation(CodeInvalidInput.String(), "Store validation error").
			WithOperation(operation).
			WithResource(resource).
			WithDetails(ae.ErrorMessage()).
			WithCause(err).
			Build()
	}
	return nil
}

func fromMessagePattern(err error, operation, resource string) *UnifiedError {
	errLower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errLower, "not found") || strings.Contains(errLower, "does not exist"):
		return NotFound(notFoundCode(resource), fmt.Sprintf("%s not found", resource)).
			WithOperation(operation).
			WithResource(resource).
			WithCause(err).
			Build()

	case strings.Contains(errLower, "already exists") || strings.Contains(errLower, "duplicate"):
		return Conflict(CodeConditionFailed.String(), fmt.Sprintf("%s already exists", resource)).
			WithOperation(operation).
			WithResource(resource).
			WithCause(err).
			Build()

	case strings.Contains(errLower, "timeout"):
		return Timeout(CodeTimeout.String(), "Operation timed out").
			WithOperation(operation).
			WithResource(resource).
			WithCause(err).
			Build()

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "network"):
		return Connection(CodeConnectionFailed.String(), "Connection failed").
			WithOperation(operation).
			WithResource(resource).
			WithCause(err).
			Build()
	}
	return nil
}

func notFoundCode(resource string) string {
	switch strings.ToLower(resource) {
	case "node":
		return CodeNodeNotFound.String()
	case "link":
		return CodeLinkNotFound.String()
	default:
		return "RESOURCE_NOT_FOUND"
	}
}
