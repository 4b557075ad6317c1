package attendance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/benmeehan/attendance-agent/internal/models"
	"github.com/benmeehan/attendance-agent/pkg/mqtt"
	"github.com/rs/zerolog"
)

// MQTTPublisher mirrors every stored record to an MQTT topic. The wrapped repository stays
// the record of truth: a failed publish is logged and never fails the write.
type MQTTPublisher struct {
	Repository

	topic      string
	qos        int
	timeout    time.Duration
	mqttClient mqtt.MQTTClient
	logger     zerolog.Logger
}

// NewMQTTPublisher wraps repo so that writes are also published on topic. The wait for
// the broker acknowledgement is bounded by timeout (mqtt.DefaultPublishTimeout when <= 0).
func NewMQTTPublisher(repo Repository, topic string, qos int, timeout time.Duration, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		Repository: repo,
		topic:      topic,
		qos:        qos,
		timeout:    timeout,
		mqttClient: mqttClient,
		logger:     logger,
	}
}

// RecordAttendance stores the record, then publishes it.
func (p *MQTTPublisher) RecordAttendance(ctx context.Context, record models.AttendanceRecord) error {
	if err := p.Repository.RecordAttendance(ctx, record); err != nil {
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to serialize attendance record")
		return nil
	}

	token := p.mqttClient.Publish(p.topic, byte(p.qos), false, payload)
	if err := mqtt.WaitToken(ctx, token, p.timeout); err != nil {
		p.logger.Error().
			Err(err).
			Str("topic", p.topic).
			Str("record_id", record.ID).
			Msg("Failed to publish attendance record to MQTT")
		return nil
	}

	p.logger.Info().
		Str("topic", p.topic).
		Str("record_id", record.ID).
		Str("status", record.Status).
		Msg("Attendance record published successfully")
	return nil
}
