package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/attendance-agent/internal/checkin"
	"github.com/benmeehan/attendance-agent/pkg/mqtt"
	"github.com/rs/zerolog"
)

// Heartbeat is the periodic status message of the agent.
type Heartbeat struct {
	AgentID     string        `json:"agent_id"`
	RollNo      string        `json:"roll_no,omitempty"`
	SubjectCode string        `json:"subject_code,omitempty"`
	Phase       checkin.Phase `json:"phase"`
	Timestamp   time.Time     `json:"timestamp"`
}

// HeartbeatService periodically publishes the check-in phase of the current session.
type HeartbeatService struct {
	PubTopic   string
	Interval   time.Duration
	AgentID    string
	QOS        int
	MqttClient mqtt.MQTTClient
	Snapshot   func() checkin.State
	Logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService.
func NewHeartbeatService(pubTopic string, interval time.Duration, agentID string, qos int,
	mqttClient mqtt.MQTTClient, snapshot func() checkin.State, logger zerolog.Logger) *HeartbeatService {

	return &HeartbeatService{
		PubTopic:   pubTopic,
		Interval:   interval,
		AgentID:    agentID,
		QOS:        qos,
		MqttClient: mqttClient,
		Snapshot:   snapshot,
		Logger:     logger,
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}
	if h.Interval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop()
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.publish()
		case <-h.ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

func (h *HeartbeatService) publish() {
	state := h.Snapshot()
	heartbeatMessage := Heartbeat{
		AgentID:     h.AgentID,
		RollNo:      state.Session.RollNo,
		SubjectCode: state.Session.SubjectCode,
		Phase:       state.Phase,
		Timestamp:   time.Now().UTC(),
	}

	payload, err := json.Marshal(heartbeatMessage)
	if err != nil {
		h.Logger.Error().Err(err).Msg("Failed to serialize heartbeat message")
		return
	}

	token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), false, payload)

	// A pending token must not keep Stop waiting
	if err := mqtt.WaitToken(h.ctx, token, h.Interval); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to publish heartbeat message")
	} else {
		h.Logger.Debug().Str("phase", string(state.Phase)).Msg("Heartbeat published successfully")
	}
}
