package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/attendance-agent/pkg/file"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// ErrNotConnected is reported by tokens issued while the service is stopped.
var ErrNotConnected = errors.New("mqtt client is not connected")

// MqttService provides methods for MQTT operations.
type MqttService struct {
	mu         sync.RWMutex
	client     MQTTClient
	fileClient file.FileOperations

	broker     string
	clientID   string
	caCertPath string
}

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations, broker, clientID, caCertPath string) *MqttService {
	return &MqttService{
		fileClient: fileClient,
		broker:     broker,
		clientID:   clientID,
		caCertPath: caCertPath,
	}
}

// Initialize sets up the MQTT client, with TLS when a CA certificate is configured, and connects.
func (s *MqttService) Initialize() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.broker)
	opts.SetClientID(s.clientID)
	opts.SetAutoReconnect(true)

	if s.caCertPath != "" {
		caCert, err := s.fileClient.ReadFileRaw(s.caCertPath)
		if err != nil {
			return fmt.Errorf("failed to read CA certificate: %w", err)
		}

		// Create a CA certificate pool and append the CA certificate to it
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return errors.New("failed to append CA certificate")
		}
		opts.SetTLSConfig(&tls.Config{
			RootCAs:    caCertPool,
			MinVersion: tls.VersionTLS12,
		})
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	return nil
}

// Start implements the registry Service contract.
func (s *MqttService) Start() error {
	if s.current() != nil {
		return errors.New("mqtt service is already running")
	}
	return s.Initialize()
}

// Stop disconnects from the broker, allowing in-flight work 250ms to finish.
func (s *MqttService) Stop() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client == nil {
		return errors.New("mqtt service is not running")
	}
	client.Disconnect(250)
	return nil
}

func (s *MqttService) current() MQTTClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Connect connects to the MQTT broker.
func (s *MqttService) Connect() mqtt.Token {
	if c := s.current(); c != nil {
		return c.Connect()
	}
	return newErrorToken(ErrNotConnected)
}

// Publish sends a message to the specified topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if c := s.current(); c != nil {
		return c.Publish(topic, qos, retained, payload)
	}
	return newErrorToken(ErrNotConnected)
}

// Subscribe subscribes to the specified topic with a message handler.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	if c := s.current(); c != nil {
		return c.Subscribe(topic, qos, callback)
	}
	return newErrorToken(ErrNotConnected)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	if c := s.current(); c != nil {
		return c.Unsubscribe(topics...)
	}
	return newErrorToken(ErrNotConnected)
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	if c := s.current(); c != nil {
		c.Disconnect(quiesce)
	}
}

// errorToken is an already-completed token carrying a fixed error.
type errorToken struct {
	err  error
	done chan struct{}
}

func newErrorToken(err error) *errorToken {
	t := &errorToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *errorToken) Wait() bool                     { return true }
func (t *errorToken) WaitTimeout(time.Duration) bool { return true }
func (t *errorToken) Done() <-chan struct{}          { return t.done }
func (t *errorToken) Error() error                   { return t.err }
