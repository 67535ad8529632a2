package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedError_Creation(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() *UnifiedError
		expected *UnifiedError
	}{
		{
			name: "fetch error",
			builder: func() *UnifiedError {
				return Fetch("FETCH_FAILED", "Failed to fetch graph").
					WithDetails("connection refused").
					Build()
			},
			expected: &UnifiedError{
				Type:      ErrorTypeFetch,
				Code:      "FETCH_FAILED",
				Message:   "Failed to fetch graph",
				Details:   "connection refused",
				Severity:  SeverityMedium,
				Retryable: true,
			},
		},
		{
			name: "mutation error",
			builder: func() *UnifiedError {
				return Mutation("DELETE_FAILED", "Failed to delete node").
					WithResource("node").
					Build()
			},
			expected: &UnifiedError{
				Type:     ErrorTypeMutation,
				Code:     "DELETE_FAILED",
				Message:  "Failed to delete node",
				Resource: "node",
				Severity: SeverityMedium,
			},
		},
		{
			name: "retry after marks retryable",
			builder: func() *UnifiedError {
				return Timeout("TIMEOUT", "Operation timed out").
					WithRetryAfter(5 * time.Second).
					Build()
			},
			expected: &UnifiedError{
				Type:       ErrorTypeTimeout,
				Code:       "TIMEOUT",
				Message:    "Operation timed out",
				Severity:   SeverityMedium,
				Retryable:  true,
				RetryAfter: 5 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder()

			assert.Equal(t, tt.expected.Type, err.Type)
			assert.Equal(t, tt.expected.Code, err.Code)
			assert.Equal(t, tt.expected.Message, err.Message)
			assert.Equal(t, tt.expected.Details, err.Details)
			assert.Equal(t, tt.expected.Resource, err.Resource)
			assert.Equal(t, tt.expected.Severity, err.Severity)
			assert.Equal(t, tt.expected.Retryable, err.Retryable)
			assert.Equal(t, tt.expected.RetryAfter, err.RetryAfter)
			assert.NotEmpty(t, err.File)
		})
	}
}

func TestUnifiedError_ErrorInterface(t *testing.T) {
	err := Validation("MISSING_ID", "Record without id").
		WithDetails("node at index 2").
		Build()
	assert.Equal(t, "[VALIDATION:MISSING_ID] Record without id: node at index 2", err.Error())

	err2 := NotFound("NODE_NOT_FOUND", "Node not found").Build()
	assert.Equal(t, "[NOT_FOUND:NODE_NOT_FOUND] Node not found", err2.Error())
}

func TestUnifiedError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Mutation("CREATE_FAILED", "Failed to create node").WithCause(cause).Build()

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestErrorType_Checking(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		checkFn  func(error) bool
		expected bool
	}{
		{"IsFetch - true", Fetch("C", "m").Build(), IsFetch, true},
		{"IsFetch - false", Mutation("C", "m").Build(), IsFetch, false},
		{"IsMutation - true", Mutation("C", "m").Build(), IsMutation, true},
		{"IsPartialLink - true", PartialLink("C", "m").Build(), IsPartialLink, true},
		{"IsInvariant - true", Invariant("C", "m").Build(), IsInvariant, true},
		{"IsValidation - wrapped", fmt.Errorf("ctx: %w", Validation("C", "m").Build()), IsValidation, true},
		{"IsState - true", State("C", "m").Build(), IsState, true},
		{"IsRetryable - fetch", Fetch("C", "m").Build(), IsRetryable, true},
		{"IsRetryable - plain error", errors.New("x"), IsRetryable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.checkFn(tt.err))
		})
	}
}

func TestWrap_PreservesType(t *testing.T) {
	original := PartialLink("PARTIAL_LINKS", "Some links failed").
		WithLinkFailures([]LinkFailure{{FromID: "n", ToID: "b", Reason: "boom"}}).
		Build()

	wrapped := Wrap(original, "AddNode", "Node created with link failures")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypePartialLink, wrapped.Type)
	assert.Equal(t, "Some links failed", wrapped.Details)
	assert.Len(t, LinkFailures(wrapped), 1)
	assert.True(t, errors.Is(wrapped, original))
	assert.Nil(t, Wrap(nil, "op", "msg"))
}

func TestWrap_PlainError(t *testing.T) {
	wrapped := Wrap(errors.New("disk full"), "Save", "Save failed")

	assert.Equal(t, ErrorTypeInternal, wrapped.Type)
	assert.Equal(t, CodeWrapError.String(), wrapped.Code)
	assert.Equal(t, "disk full", wrapped.Details)
}

func TestAsFetchAndAsMutation(t *testing.T) {
	cause := Connection(CodeConnectionFailed.String(), "Connection failed").Build()

	fetchErr := AsFetch(cause, "FetchGraph")
	assert.True(t, IsFetch(fetchErr))
	assert.True(t, fetchErr.Retryable)
	assert.Same(t, fetchErr, AsFetch(fetchErr, "again"))

	notFound := NotFound(CodeNodeNotFound.String(), "node not found").Build()
	mutErr := AsMutation(notFound, "delete node", "node")
	assert.True(t, IsMutation(mutErr))
	assert.Equal(t, CodeNodeNotFound.String(), mutErr.Code)
	assert.True(t, IsNotFound(errors.Unwrap(mutErr)))

	assert.Nil(t, AsFetch(nil, "x"))
	assert.Nil(t, AsMutation(nil, "x", "y"))
}

func TestFromStoreError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedType ErrorType
		retryable    bool
	}{
		{
			name:         "conditional check",
			err:          &smithy.GenericAPIError{Code: "ConditionalCheckFailedException", Message: "exists"},
			expectedType: ErrorTypeConflict,
		},
		{
			name:         "throttled",
			err:          &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"},
			expectedType: ErrorTypeRateLimit,
			retryable:    true,
		},
		{
			name:         "service unavailable",
			err:          &smithy.GenericAPIError{Code: "ServiceUnavailable"},
			expectedType: ErrorTypeUnavailable,
			retryable:    true,
		},
		{
			name:         "deadline",
			err:          fmt.Errorf("query: %w", context.DeadlineExceeded),
			expectedType: ErrorTypeTimeout,
			retryable:    true,
		},
		{
			name:         "not found message",
			err:          errors.New("node abc not found"),
			expectedType: ErrorTypeNotFound,
		},
		{
			name:         "connection refused",
			err:          errors.New("dial tcp: connection refused"),
			expectedType: ErrorTypeConnection,
			retryable:    true,
		},
		{
			name:         "unknown",
			err:          errors.New("weird"),
			expectedType: ErrorTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromStoreError(tt.err, "Op", "node")

			require.NotNil(t, got)
			assert.Equal(t, tt.expectedType, got.Type)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.True(t, errors.Is(got, tt.err))
		})
	}

	assert.Nil(t, FromStoreError(nil, "Op", "node"))
}
