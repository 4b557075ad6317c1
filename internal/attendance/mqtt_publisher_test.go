package attendance_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/attendance-agent/internal/attendance"
	"github.com/benmeehan/attendance-agent/internal/constants"
	"github.com/benmeehan/attendance-agent/internal/mocks"
	"github.com/benmeehan/attendance-agent/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func record() models.AttendanceRecord {
	return models.AttendanceRecord{ID: "rec-1", Date: "2024-02-01", Subject: "Operating Systems", SubjectCode: "CS302", Status: constants.StatusPresent}
}

func TestMQTTPublisher_PublishesAfterStore(t *testing.T) {
	repo := new(mocks.MockRepository)
	mqttClient := new(mocks.MockMQTTClient)
	token := mocks.NewCompletedToken(nil)
	ctx := context.Background()

	payload, _ := json.Marshal(record())
	repo.On("RecordAttendance", ctx, record()).Return(nil)
	mqttClient.On("Publish", "attendance/records", byte(1), false, payload).Return(token)

	p := attendance.NewMQTTPublisher(repo, "attendance/records", 1, time.Second, mqttClient, zerolog.Nop())
	assert.NoError(t, p.RecordAttendance(ctx, record()))

	repo.AssertExpectations(t)
	mqttClient.AssertExpectations(t)
	token.AssertExpectations(t)
}

func TestMQTTPublisher_StoreFailureSkipsPublish(t *testing.T) {
	repo := new(mocks.MockRepository)
	mqttClient := new(mocks.MockMQTTClient)
	ctx := context.Background()

	repo.On("RecordAttendance", ctx, record()).Return(errors.New("disk full"))

	p := attendance.NewMQTTPublisher(repo, "attendance/records", 1, time.Second, mqttClient, zerolog.Nop())
	assert.EqualError(t, p.RecordAttendance(ctx, record()), "disk full")

	mqttClient.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMQTTPublisher_PublishFailureIsNotFatal(t *testing.T) {
	repo := new(mocks.MockRepository)
	mqttClient := new(mocks.MockMQTTClient)
	ctx := context.Background()

	repo.On("RecordAttendance", ctx, record()).Return(nil)
	mqttClient.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewCompletedToken(errors.New("broker unreachable")))

	p := attendance.NewMQTTPublisher(repo, "attendance/records", 0, time.Second, mqttClient, zerolog.Nop())
	assert.NoError(t, p.RecordAttendance(ctx, record()))

	repo.On("ListAttendance", ctx, attendance.Filter{}).Return([]models.AttendanceRecord{record()}, nil)
	history, err := p.ListAttendance(ctx, attendance.Filter{})
	assert.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMQTTPublisher_PendingTokenIsBounded(t *testing.T) {
	repo := new(mocks.MockRepository)
	mqttClient := new(mocks.MockMQTTClient)
	ctx := context.Background()

	// broker reconnecting: the token never completes
	repo.On("RecordAttendance", ctx, record()).Return(nil)
	mqttClient.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewPendingToken())

	p := attendance.NewMQTTPublisher(repo, "attendance/records", 1, 50*time.Millisecond, mqttClient, zerolog.Nop())

	start := time.Now()
	assert.NoError(t, p.RecordAttendance(ctx, record()))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMQTTPublisher_PendingTokenHonoursContext(t *testing.T) {
	repo := new(mocks.MockRepository)
	mqttClient := new(mocks.MockMQTTClient)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	repo.On("RecordAttendance", mock.Anything, record()).Return(nil)
	mqttClient.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewPendingToken())

	p := attendance.NewMQTTPublisher(repo, "attendance/records", 1, time.Hour, mqttClient, zerolog.Nop())

	start := time.Now()
	assert.NoError(t, p.RecordAttendance(ctx, record()))
	assert.Less(t, time.Since(start), 2*time.Second)
}
