package rest

import (
	"encoding/json"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"graphmind/internal/errors"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     bool                 `json:"error"`
	Code      string               `json:"code"`
	Type      errors.ErrorType     `json:"type,omitempty"`
	Message   string               `json:"message"`
	Details   string               `json:"details,omitempty"`
	Retryable bool                 `json:"retryable,omitempty"`
	Failures  []errors.LinkFailure `json:"failures,omitempty"`
	RequestID string               `json:"requestId,omitempty"`
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError writes err with the status StatusFor picks for it.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := StatusFor(err)
	body := ErrorResponse{
		Error:     true,
		Code:      errors.CodeInternal.String(),
		Message:   "Internal server error",
		RequestID: chimiddleware.GetReqID(r.Context()),
	}

	var ue *errors.UnifiedError
	if errors.As(err, &ue) {
		body.Code = ue.Code
		body.Type = ue.Type
		body.Message = ue.Message
		body.Details = ue.Details
		body.Retryable = ue.Retryable
		body.Failures = ue.LinkFailures
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	} else {
		logger.Debug("Request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	respondJSON(w, logger, status, body)
}

// StatusFor maps an engine error to an HTTP status. Mutation errors take the
// status of the store error that caused them.
func StatusFor(err error) int {
	var ue *errors.UnifiedError
	if !errors.As(err, &ue) {
		return http.StatusInternalServerError
	}

	switch ue.Type {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeConflict, errors.ErrorTypeState:
		return http.StatusConflict
	case errors.ErrorTypeInvariant:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypePartialLink:
		return http.StatusMultiStatus
	case errors.ErrorTypeFetch:
		return http.StatusBadGateway
	case errors.ErrorTypeMutation:
		if ue.Cause != nil {
			if status := StatusFor(ue.Cause); status < http.StatusInternalServerError {
				return status
			}
		}
		return http.StatusBadGateway
	case errors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrorTypeUnavailable, errors.ErrorTypeConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
