package mocks

import (
	"context"

	"github.com/benmeehan/attendance-agent/internal/attendance"
	"github.com/benmeehan/attendance-agent/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a mock implementation of attendance.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) RecordAttendance(ctx context.Context, record models.AttendanceRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRepository) ListAttendance(ctx context.Context, filter attendance.Filter) ([]models.AttendanceRecord, error) {
	args := m.Called(ctx, filter)
	records, _ := args.Get(0).([]models.AttendanceRecord)
	return records, args.Error(1)
}
