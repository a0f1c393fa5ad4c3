package generation

import (
	"context"

	"ragbench/internal/domain"

	"github.com/stretchr/testify/mock"
)

type mockChat struct {
	mock.Mock
}

func (m *mockChat) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatResponse), args.Error(1)
}

func (m *mockChat) Provider() string { return "mock" }
