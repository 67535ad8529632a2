package errors

// ErrorCode represents a unique error code for specific error scenarios.
type ErrorCode string

// Graph model codes
const (
	CodeMissingID         ErrorCode = "MISSING_ID"
	CodeDuplicateNode     ErrorCode = "DUPLICATE_NODE"
	CodeDuplicateLink     ErrorCode = "DUPLICATE_LINK"
	CodeDanglingLink      ErrorCode = "DANGLING_LINK"
	CodeNodeNotFound      ErrorCode = "NODE_NOT_FOUND"
	CodeLinkNotFound      ErrorCode = "LINK_NOT_FOUND"
	CodeInvalidLinkType   ErrorCode = "INVALID_LINK_TYPE"
	CodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
)

// Synchronization codes
const (
	CodeFetchFailed      ErrorCode = "FETCH_FAILED"
	CodeMutationFailed   ErrorCode = "MUTATION_FAILED"
	CodeCreateFailed     ErrorCode = "CREATE_FAILED"
	CodeLinkFailed       ErrorCode = "LINK_FAILED"
	CodeDeleteFailed     ErrorCode = "DELETE_FAILED"
	CodePartialLinks     ErrorCode = "PARTIAL_LINKS"
	CodeDeleteNotConfirm ErrorCode = "DELETE_NOT_CONFIRMED"
	CodeRemoteError      ErrorCode = "REMOTE_ERROR"
)

// Interaction codes
const (
	CodeNoSelection    ErrorCode = "NO_SELECTION"
	CodeNotANeighbor   ErrorCode = "NOT_A_NEIGHBOR"
	CodeInvalidPointer ErrorCode = "INVALID_POINTER"
)

// Infrastructure codes
const (
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeInvalidConfig      ErrorCode = "INVALID_CONFIG"
	CodeDatabaseError      ErrorCode = "DATABASE_ERROR"
	CodeConditionFailed    ErrorCode = "CONDITION_FAILED"
	CodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeCircuitOpen        ErrorCode = "CIRCUIT_OPEN"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	CodeWrapError          ErrorCode = "WRAP_ERROR"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}
