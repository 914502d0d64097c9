package worker

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"web3mail/internal/external"
	"web3mail/internal/types"
)

type mockEmailProvider struct {
	mock.Mock
}

func (m *mockEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

type mockEmailValidator struct {
	mock.Mock
}

func (m *mockEmailValidator) CheckDeliverability(ctx context.Context, address string) (external.Deliverability, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(external.Deliverability), args.Error(1)
}

type mockContentStore struct {
	mock.Mock
}

func (m *mockContentStore) Get(ctx context.Context, multiaddr string) ([]byte, error) {
	args := m.Called(ctx, multiaddr)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

type mockGraph struct {
	mock.Mock
}

// Query decodes the JSON document passed to Return into out.
func (m *mockGraph) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	args := m.Called(ctx, query, variables)
	if doc, ok := args.Get(0).(string); ok && doc != "" {
		if err := json.Unmarshal([]byte(doc), out); err != nil {
			return err
		}
	}
	return args.Error(1)
}
