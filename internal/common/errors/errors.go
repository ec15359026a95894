// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInferenceTimeout         ErrorCode = "INFERENCE_TIMEOUT"
	ErrCodeInferenceQuotaExceeded   ErrorCode = "INFERENCE_QUOTA_EXCEEDED"
	ErrCodeInferenceAuthFailed      ErrorCode = "INFERENCE_AUTH_FAILED"
	ErrCodeInferenceResponseInvalid ErrorCode = "INFERENCE_RESPONSE_INVALID"

	ErrCodeDistanceLookupFailed ErrorCode = "DISTANCE_LOOKUP_FAILED"

	ErrCodeDimensionFailed     ErrorCode = "DIMENSION_FAILED"
	ErrCodeRankingCancelled    ErrorCode = "RANKING_CANCELLED"
	ErrCodeInvalidRankingInput ErrorCode = "INVALID_RANKING_INPUT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeWorkflowEngineFailed ErrorCode = "WORKFLOW_ENGINE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInferenceTimeoutError is returned for timeouts and 5xx responses from the
// inference service. These are retried.
func NewInferenceTimeoutError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceTimeout,
		Message:   "Inference call timed out or was unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInferenceQuotaExceededError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceQuotaExceeded,
		Message:   "Inference quota exceeded",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInferenceAuthFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceAuthFailed,
		Message:   "Inference authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInferenceResponseInvalidError covers unparseable bodies, schema violations and
// rankings that are not a permutation of the requested candidates.
func NewInferenceResponseInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceResponseInvalid,
		Message:   "Inference response invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDistanceLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDistanceLookupFailed,
		Message:   "Distance lookup failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDimensionFailedError wraps an error or recovered panic from a ranking dimension.
func NewDimensionFailedError(dimension string, cause interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeDimensionFailed,
		Message:   fmt.Sprintf("Ranking dimension '%s' failed", dimension),
		Details:   fmt.Sprint(cause),
		Retryable: false,
		Metadata:  map[string]interface{}{"dimension": dimension},
		Timestamp: time.Now().UTC(),
	}
}

func NewRankingCancelledError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRankingCancelled,
		Message:   "Ranking cancelled",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidRankingInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRankingInput,
		Message:   "Invalid ranking input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseInsertError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Failed to persist ranking results",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWorkflowEngineError wraps a Zeebe gateway failure.
func NewWorkflowEngineError(details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      ErrCodeWorkflowEngineFailed,
		Message:   "Workflow engine request failed",
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInferenceTimeout:         "INFERENCE_TIMEOUT",
	ErrCodeInferenceQuotaExceeded:   "INFERENCE_QUOTA_EXCEEDED",
	ErrCodeInferenceAuthFailed:      "INFERENCE_AUTH_FAILED",
	ErrCodeInferenceResponseInvalid: "INFERENCE_RESPONSE_INVALID",
	ErrCodeDistanceLookupFailed:     "DISTANCE_LOOKUP_FAILED",
	ErrCodeDimensionFailed:          "DIMENSION_FAILED",
	ErrCodeRankingCancelled:         "RANKING_CANCELLED",
	ErrCodeInvalidRankingInput:      "INVALID_RANKING_INPUT",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeWorkflowEngineFailed:     "WORKFLOW_ENGINE_FAILED",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeWorkflowEngineFailed:
		return 3

	case ErrCodeInferenceTimeout,
		ErrCodeRankingCancelled:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryable reports whether err (or anything it wraps) is a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// CodeOf returns the code of the first StandardError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INFERENCE"):
		return "AI"
	case strings.Contains(codeStr, "DISTANCE"):
		return "GEO"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "RANKING") || strings.Contains(codeStr, "DIMENSION"):
		return "RANKING"
	default:
		return "OTHER"
	}
}
