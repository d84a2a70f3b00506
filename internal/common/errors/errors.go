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
	ErrCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidWeightConfig   ErrorCode = "INVALID_WEIGHT_CONFIG"
	ErrCodeNeedClosed            ErrorCode = "NEED_CLOSED"
	ErrCodeComputeFailed         ErrorCode = "MATCH_COMPUTE_FAILED"
	ErrCodeComputeTimeout        ErrorCode = "MATCH_COMPUTE_TIMEOUT"
	ErrCodeUpstreamUnavailable   ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodePersistenceFailed     ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeCacheUnavailable      ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeAssistedScoringFailed ErrorCode = "ASSISTED_SCORING_FAILED"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is matches another StandardError by code, so errors.Is works against the sentinels below.
func (e *StandardError) Is(target error) bool {
	var other *StandardError
	if stderrors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound            = &StandardError{Code: ErrCodeNotFound}
	ErrInvalidRequest      = &StandardError{Code: ErrCodeInvalidRequest}
	ErrInvalidWeightConfig = &StandardError{Code: ErrCodeInvalidWeightConfig}
	ErrComputeFailed       = &StandardError{Code: ErrCodeComputeFailed}
	ErrComputeTimeout      = &StandardError{Code: ErrCodeComputeTimeout}
	ErrUpstreamUnavailable = &StandardError{Code: ErrCodeUpstreamUnavailable}
	ErrPersistenceFailed   = &StandardError{Code: ErrCodePersistenceFailed}
)

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

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		Cause:     cause,
	}
}

// NewNotFoundError is returned for missing resources and for resources owned by
// another tenant alike. The message never says which.
func NewNotFoundError(kind string) *StandardError {
	return newError(ErrCodeNotFound, fmt.Sprintf("%s not found", kind), "", false, nil)
}

// NewInvalidRequestError creates a non-retryable request validation error.
func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid matching request", details, false, nil)
}

// NewInvalidWeightConfigError creates a non-retryable configuration error.
func NewInvalidWeightConfigError(err error) *StandardError {
	return newError(ErrCodeInvalidWeightConfig, "Weight configuration is not usable", err.Error(), false, err)
}

// NewNeedClosedError is returned when a run targets a need that is no longer open.
func NewNeedClosedError(needID string) *StandardError {
	return newError(ErrCodeNeedClosed, "Need is not open", fmt.Sprintf("needId: %s", needID), false, nil)
}

// NewComputeFailedError wraps a scoring or ranking failure for one need.
func NewComputeFailedError(needID string, err error) *StandardError {
	return newError(ErrCodeComputeFailed, "Ranking computation failed",
		fmt.Sprintf("needId: %s, error: %v", needID, err), false, err)
}

// NewComputeTimeoutError is recorded when a need did not complete within its timeout.
func NewComputeTimeoutError(needID string, err error) *StandardError {
	return newError(ErrCodeComputeTimeout, "Ranking computation timeout",
		fmt.Sprintf("needId: %s", needID), true, err)
}

// NewUpstreamUnavailableError wraps a candidate or need provider failure.
func NewUpstreamUnavailableError(provider string, err error) *StandardError {
	return newError(ErrCodeUpstreamUnavailable, fmt.Sprintf("Provider '%s' unavailable", provider), err.Error(), true, err)
}

// NewPersistenceFailedError wraps a result sink failure.
func NewPersistenceFailedError(operation string, err error) *StandardError {
	return newError(ErrCodePersistenceFailed, "Persisting matching results failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true, err)
}

// NewCacheUnavailableError wraps a shared cache failure.
func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Shared ranking cache unavailable", err.Error(), true, err)
}

// NewAssistedScoringFailedError wraps a failure of the assisted scorer.
func NewAssistedScoringFailedError(err error) *StandardError {
	return newError(ErrCodeAssistedScoringFailed, "Assisted scoring failed", err.Error(), true, err)
}

// NewInternalError wraps anything that is not already a StandardError.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNotFound:              "NOT_FOUND",
	ErrCodeInvalidRequest:        "INVALID_REQUEST",
	ErrCodeInvalidWeightConfig:   "INVALID_CONFIG",
	ErrCodeNeedClosed:            "NEED_CLOSED",
	ErrCodeComputeFailed:         "MATCH_COMPUTE_FAILED",
	ErrCodeComputeTimeout:        "MATCH_COMPUTE_TIMEOUT",
	ErrCodeUpstreamUnavailable:   "UPSTREAM_UNAVAILABLE",
	ErrCodePersistenceFailed:     "PERSISTENCE_FAILED",
	ErrCodeCacheUnavailable:      "CACHE_UNAVAILABLE",
	ErrCodeAssistedScoringFailed: "ASSISTED_SCORING_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeUpstreamUnavailable,
		ErrCodePersistenceFailed:
		return 3

	case ErrCodeComputeTimeout,
		ErrCodeCacheUnavailable,
		ErrCodeAssistedScoringFailed:
		return 2

	default:
		return 0 // business errors: no retry
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

// AsStandard extracts a StandardError from a wrapped chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// IsNotFound is the common benign check used by result sinks.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "ACCESS"
	case strings.Contains(codeStr, "UPSTREAM") || strings.Contains(codeStr, "PERSISTENCE"):
		return "DATABASE"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "ASSISTED"):
		return "AI"
	case strings.Contains(codeStr, "COMPUTE"):
		return "COMPUTE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "CLOSED"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
