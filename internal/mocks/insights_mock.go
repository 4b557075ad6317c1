package mocks

import (
	"context"

	"github.com/benmeehan/attendance-agent/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockDocumentAnalyzer is a mock implementation of insights.DocumentAnalyzer
type MockDocumentAnalyzer struct {
	mock.Mock
}

func (m *MockDocumentAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string) models.DocumentAnalysis {
	args := m.Called(ctx, image, mimeType)
	return args.Get(0).(models.DocumentAnalysis)
}

// MockAttendanceAdvisor is a mock implementation of insights.AttendanceAdvisor
type MockAttendanceAdvisor struct {
	mock.Mock
}

func (m *MockAttendanceAdvisor) Advise(ctx context.Context, percentage float64) string {
	args := m.Called(ctx, percentage)
	return args.String(0)
}
