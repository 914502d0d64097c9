package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// Callers MUST use these constants instead of hardcoded strings.
const (
	// Validation: malformed or out-of-range caller input. Never retried.
	ErrCodeValidationInvalidAddress     ErrorCode = "validation_invalid_address"
	ErrCodeValidationInvalidSubject     ErrorCode = "validation_invalid_subject"
	ErrCodeValidationInvalidContent     ErrorCode = "validation_invalid_content"
	ErrCodeValidationInvalidContentType ErrorCode = "validation_invalid_content_type"
	ErrCodeValidationInvalidSenderName  ErrorCode = "validation_invalid_sender_name"
	ErrCodeValidationInvalidPrice       ErrorCode = "validation_invalid_price"
	ErrCodeValidationMissingField       ErrorCode = "validation_missing_required_field"
	ErrCodeValidationConflictingFields  ErrorCode = "validation_conflicting_fields"
	ErrCodeValidationWorkerpoolMismatch ErrorCode = "validation_workerpool_mismatch"
	ErrCodeValidationInvalidInput       ErrorCode = "validation_invalid_input"

	// Protocol: the marketplace infrastructure itself is unavailable.
	ErrCodeProtocolUnavailable ErrorCode = "protocol_unavailable"

	// Workflow: domain failures with a human-readable message and a cause.
	ErrCodeWorkflowFetchContacts     ErrorCode = "workflow_fetch_contacts_failed"
	ErrCodeWorkflowSendEmail         ErrorCode = "workflow_send_email_failed"
	ErrCodeWorkflowPrepareCampaign   ErrorCode = "workflow_prepare_campaign_failed"
	ErrCodeWorkflowSendCampaign      ErrorCode = "workflow_send_campaign_failed"
	ErrCodeWorkflowOrderNotFound     ErrorCode = "workflow_order_not_found"
	ErrCodeWorkflowVoucher           ErrorCode = "workflow_voucher_unusable"
	ErrCodeWorkflowSubgraph          ErrorCode = "workflow_subgraph_failed"
	ErrCodeWorkflowInvalidEmail      ErrorCode = "workflow_invalid_email"
	ErrCodeWorkflowDecryptFailed     ErrorCode = "workflow_decrypt_failed"
	ErrCodeWorkflowDownloadFailed    ErrorCode = "workflow_download_failed"
	ErrCodeWorkflowProtectedData     ErrorCode = "workflow_protected_data_unreadable"
	ErrCodeWorkflowEmailSendFailed   ErrorCode = "workflow_email_send_failed"
	ErrCodeWorkflowUnexpectedResults ErrorCode = "workflow_unexpected_results"

	// Internal/Upstream: outbound HTTP failures.
	ErrCodeInternalUnexpected     ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamEmailProvider  ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamEmailValidator ErrorCode = "upstream_email_validator_unavailable"
	ErrCodeUpstreamStorage        ErrorCode = "upstream_storage_unavailable"
	ErrCodeUpstreamSubgraph       ErrorCode = "upstream_subgraph_unavailable"
	ErrCodeUpstreamUnavailable    ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited    ErrorCode = "upstream_rate_limited"
)

// ProtocolErrorMessage is the fixed user-facing message carried by every
// protocol error.
const ProtocolErrorMessage = "A service in the iExec protocol appears to be unavailable. You can retry later or contact iExec support for help."

// IsValidation reports whether the code belongs to the validation category.
func (c ErrorCode) IsValidation() bool {
	return strings.HasPrefix(string(c), "validation_")
}

// IsWorkflow reports whether the code belongs to the workflow category.
func (c ErrorCode) IsWorkflow() bool {
	return strings.HasPrefix(string(c), "workflow_")
}

// AppError is the standard error type used throughout the SDK and the worker.
// Validation, protocol and workflow errors are all AppErrors distinguished by
// their Code, so callers can branch with errors.As and keep the cause chain.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsProtocolError reports whether the marketplace infrastructure itself
// failed. Protocol errors are the only retry-later class of error.
func (e *AppError) IsProtocolError() bool {
	return e.Code == ErrCodeProtocolUnavailable
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a validation error. Validation errors are raised
// before any network effect.
func NewValidationError(code ErrorCode, message string, err error) *AppError {
	if !code.IsValidation() {
		code = ErrCodeValidationInvalidInput
	}
	return NewAppError(code, message, err)
}

// NewWorkflowError creates a workflow error with a human-readable message and
// the error that caused it.
func NewWorkflowError(code ErrorCode, message string, cause error) *AppError {
	return NewAppError(code, message, cause)
}

// NewProtocolError wraps cause as a protocol error. An error that is already a
// protocol error is returned as-is.
func NewProtocolError(cause error) *AppError {
	if pe := AsProtocolError(cause); pe != nil {
		return pe
	}
	return NewAppError(ErrCodeProtocolUnavailable, ProtocolErrorMessage, cause)
}

// AsProtocolError returns the protocol error in err's chain, or nil.
func AsProtocolError(err error) *AppError {
	var appErr *AppError
	for e := err; e != nil; {
		if !errors.As(e, &appErr) {
			return nil
		}
		if appErr.IsProtocolError() {
			return appErr
		}
		e = appErr.Err
	}
	return nil
}

// IsValidationError reports whether err's chain holds a validation error.
func IsValidationError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code.IsValidation()
}
