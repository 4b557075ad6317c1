package mocks

import (
	"context"

	"github.com/benmeehan/attendance-agent/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockProvider is a mock implementation of location.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) RequestPosition(ctx context.Context, opts location.Options) (location.Coordinate, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).(location.Coordinate), args.Error(1)
}
