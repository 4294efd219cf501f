// Package errors provides standardized error handling for the lead
// capture wizard core.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Local validation: blocks a step transition, never reaches the network.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Submission errors.
	ErrCodeBackendUnreachable ErrorCode = "BACKEND_UNREACHABLE"
	ErrCodeLeadSubmitRejected ErrorCode = "LEAD_SUBMIT_REJECTED"
	ErrCodeBadBackendResponse ErrorCode = "BAD_BACKEND_RESPONSE"
	ErrCodeSubmissionInFlight ErrorCode = "SUBMISSION_IN_FLIGHT"

	// Authentication errors.
	ErrCodeTokenVerificationFailed ErrorCode = "TOKEN_VERIFICATION_FAILED"
	ErrCodeAuthFailed              ErrorCode = "AUTH_FAILED"
	ErrCodeAdminAccessDenied       ErrorCode = "ADMIN_ACCESS_DENIED"

	// Wizard/session errors.
	ErrCodeInvalidStepTransition ErrorCode = "INVALID_STEP_TRANSITION"
	ErrCodeSessionNotFound       ErrorCode = "SESSION_NOT_FOUND"

	// Infrastructure errors.
	ErrCodeTokenStorageFailed ErrorCode = "TOKEN_STORAGE_FAILED"
	ErrCodeAuditWriteFailed   ErrorCode = "AUDIT_WRITE_FAILED"
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

// Is lets errors.Is match against another StandardError by code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	return ok && t.Code == e.Code
}

// NewValidationFailedError creates a non-retryable local validation error.
func NewValidationFailedError(step int, errorCount int) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Form validation failed",
		Details:   fmt.Sprintf("step: %d, errors: %d", step, errorCount),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackendUnreachableError creates a retryable transport error.
func NewBackendUnreachableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendUnreachable,
		Message:   "Unable to connect to our servers. Please check your internet connection and try again.",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLeadSubmitRejectedError collapses a structured per-field rejection
// into one combined message. Submission-time errors are never
// re-attributed to individual form fields.
func NewLeadSubmitRejectedError(message string, fieldErrors map[string]string) *StandardError {
	combined := message
	if len(fieldErrors) > 0 {
		combined = "Validation Error: " + CombineFieldErrors(fieldErrors)
	}
	if combined == "" {
		combined = "Submission failed"
	}
	return &StandardError{
		Code:      ErrCodeLeadSubmitRejected,
		Message:   combined,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBadBackendResponseError creates an error for responses that fail
// the response contract check.
func NewBadBackendResponseError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBadBackendResponse,
		Message:   "Invalid response format from server",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionInFlightError guards the single-submission rule.
func NewSubmissionInFlightError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionInFlight,
		Message:   "A submission is already in progress",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenVerificationFailedError marks a failed startup verification.
// Expected for expired sessions, so callers fall back silently.
func NewTokenVerificationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenVerificationFailed,
		Message:   "Session token could not be verified",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthFailedError creates a login/registration rejection error.
func NewAuthFailedError(message string) *StandardError {
	if message == "" {
		message = "Login failed. Please try again."
	}
	return &StandardError{
		Code:      ErrCodeAuthFailed,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAdminAccessDeniedError creates a role-gate rejection.
func NewAdminAccessDeniedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAdminAccessDenied,
		Message:   "Admin privileges are required",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStepTransitionError creates a non-retryable wizard error.
func NewInvalidStepTransitionError(from, to int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStepTransition,
		Message:   "Invalid wizard step transition",
		Details:   fmt.Sprintf("from: %d, to: %d", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a missing-session error.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Wizard session not found or expired",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenStorageFailedError creates a retryable durable-store error.
func NewTokenStorageFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenStorageFailed,
		Message:   "Failed to persist session credential",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuditWriteFailedError creates a retryable audit-log error.
func NewAuditWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditWriteFailed,
		Message:   "Failed to record submission attempt",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// CombineFieldErrors renders a per-field error map as one deterministic
// comma-separated string, sorted by field name.
func CombineFieldErrors(fieldErrors map[string]string) string {
	if len(fieldErrors) == 0 {
		return ""
	}
	fields := make([]string, 0, len(fieldErrors))
	for field := range fieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		if msg := fieldErrors[field]; msg != "" {
			messages = append(messages, msg)
		}
	}
	return strings.Join(messages, ", ")
}

// IsRetryable reports whether err carries a retryable StandardError,
// unwrapping as needed.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// CodeOf extracts the error code, unwrapping as needed. Foreign errors
// yield the empty code.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// GetErrorCategory buckets codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidStepTransition:
		return "validation"
	case ErrCodeBackendUnreachable, ErrCodeBadBackendResponse:
		return "transport"
	case ErrCodeLeadSubmitRejected, ErrCodeSubmissionInFlight:
		return "submission"
	case ErrCodeTokenVerificationFailed, ErrCodeAuthFailed, ErrCodeAdminAccessDenied:
		return "auth"
	case ErrCodeSessionNotFound, ErrCodeTokenStorageFailed, ErrCodeAuditWriteFailed:
		return "infrastructure"
	default:
		return "unknown"
	}
}
