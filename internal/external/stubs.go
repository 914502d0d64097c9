package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"web3mail/internal/email"
	"web3mail/internal/types"
)

// StubEmailProvider logs messages instead of sending them. Used in stub mode.
type StubEmailProvider struct {
	logger *slog.Logger
	sent   atomic.Int64
}

// NewStubEmailProvider creates a provider that logs messages instead of sending them.
func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	n := s.sent.Add(1)
	s.logger.InfoContext(ctx, "stub: Send called",
		"to", email.RedactEmail(input.To),
		"from", input.From.Address,
		"subject_length", len(input.Subject),
		"content_type", input.ContentType,
	)
	return fmt.Sprintf("stub-msg-%d", n), nil
}

// Sent returns the number of messages handed to the stub.
func (s *StubEmailProvider) Sent() int64 {
	return s.sent.Load()
}

// StubEmailValidator reports every address as deliverable.
type StubEmailValidator struct {
	logger *slog.Logger
}

// NewStubEmailValidator creates a validator that reports every address deliverable.
func NewStubEmailValidator(logger *slog.Logger) *StubEmailValidator {
	return &StubEmailValidator{logger: logger}
}

func (s *StubEmailValidator) CheckDeliverability(ctx context.Context, address string) (Deliverability, error) {
	s.logger.InfoContext(ctx, "stub: CheckDeliverability called", "address", email.RedactEmail(address))
	return Deliverable, nil
}

var (
	_ EmailProvider  = (*StubEmailProvider)(nil)
	_ EmailValidator = (*StubEmailValidator)(nil)
)
