package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/perbu/repo-metrics/github"
	"github.com/perbu/repo-metrics/logger"
	"github.com/perbu/repo-metrics/models"
)

type ErrorCode string

const (
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeRemoteAuth       ErrorCode = "REMOTE_AUTH"
	CodeRemoteError      ErrorCode = "REMOTE_ERROR"
	CodeInsightsDisabled ErrorCode = "INSIGHTS_DISABLED"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeCancelled        ErrorCode = "REQUEST_CANCELLED"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// statusClientClosedRequest has no net/http constant; nginx coined it.
const statusClientClosedRequest = 499

var errInsightsDisabled = errors.New("insights are not configured")

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func writeError(w http.ResponseWriter, err error, log *logger.Logger) {
	status, code, message := mapError(err)

	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err.Error(), "code", code)
	} else {
		log.Warn("request rejected", "error", err.Error(), "code", code)
	}

	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}, log)
}

func mapError(err error) (int, ErrorCode, string) {
	var rfe *github.RemoteFetchError
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput, err.Error()
	case errors.Is(err, errInsightsDisabled):
		return http.StatusServiceUnavailable, CodeInsightsDisabled, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout, "request timed out"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, CodeCancelled, "request cancelled"
	case errors.As(err, &rfe):
		switch rfe.StatusCode {
		case http.StatusNotFound:
			return http.StatusNotFound, CodeNotFound, "repository not found: " + rfe.Message
		case http.StatusUnauthorized, http.StatusForbidden:
			return rfe.StatusCode, CodeRemoteAuth, "remote API refused the credential: " + rfe.Message
		default:
			return http.StatusBadGateway, CodeRemoteError, "failed to fetch data from remote API: " + rfe.Message
		}
	default:
		return http.StatusInternalServerError, CodeInternal, "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}
