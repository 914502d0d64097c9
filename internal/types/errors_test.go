package types

import (
	"errors"
	"fmt"
	"testing"
)

// TestAppErrorErrorFormat verifies the Error() method produces the format "code: message".
func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationInvalidSubject,
		Message: "emailSubject must be at most 78 characters",
	}

	expected := "validation_invalid_subject: emailSubject must be at most 78 characters"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

// TestAppErrorUnwrap verifies the error chain support via Unwrap.
func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("orderbook empty")
	appErr := NewWorkflowError(ErrCodeWorkflowSendEmail, "Failed to sendEmail", underlying)

	if !errors.Is(appErr, underlying) {
		t.Errorf("errors.Is did not find the cause in the chain")
	}

	wrapped := fmt.Errorf("outer: %w", appErr)
	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should extract AppError from a wrapped chain")
	}
	if target.Code != ErrCodeWorkflowSendEmail {
		t.Errorf("Code = %q, want %q", target.Code, ErrCodeWorkflowSendEmail)
	}
}

func TestNewValidationError_ForcesValidationCategory(t *testing.T) {
	err := NewValidationError(ErrCodeWorkflowSendEmail, "bad input", nil)
	if err.Code != ErrCodeValidationInvalidInput {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeValidationInvalidInput)
	}
	if !IsValidationError(err) {
		t.Error("IsValidationError should be true")
	}
}

func TestNewProtocolError(t *testing.T) {
	cause := errors.New("market api: 503")
	pe := NewProtocolError(cause)

	if !pe.IsProtocolError() {
		t.Fatal("IsProtocolError() should be true")
	}
	if pe.Message != ProtocolErrorMessage {
		t.Errorf("Message = %q, want the fixed protocol message", pe.Message)
	}
	if !errors.Is(pe, cause) {
		t.Error("protocol error should keep its cause")
	}
}

func TestNewProtocolError_NeverDoubleWraps(t *testing.T) {
	first := NewProtocolError(errors.New("down"))

	again := NewProtocolError(first)
	if again != first {
		t.Error("re-classifying a protocol error should return it as-is")
	}

	nested := NewProtocolError(NewWorkflowError(ErrCodeWorkflowSendEmail, "Failed to sendEmail", first))
	if nested != first {
		t.Error("a protocol error nested under a workflow error should be surfaced as-is")
	}
}

func TestAsProtocolError_NoMatch(t *testing.T) {
	err := NewWorkflowError(ErrCodeWorkflowOrderNotFound, "Dataset order not found", errors.New("x"))
	if AsProtocolError(err) != nil {
		t.Error("workflow error should not be reported as protocol error")
	}
	if AsProtocolError(nil) != nil {
		t.Error("nil should not be reported as protocol error")
	}
}

func TestContentTypeValid(t *testing.T) {
	tests := []struct {
		ct   ContentType
		want bool
	}{
		{ContentTypeText, true},
		{ContentTypeHTML, true},
		{"application/json", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.ct.Valid(); got != tt.want {
			t.Errorf("ContentType(%q).Valid() = %v, want %v", tt.ct, got, tt.want)
		}
	}
}
