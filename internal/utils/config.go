package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/attendance-agent/internal/constants"
	"github.com/benmeehan/attendance-agent/pkg/file"
	"github.com/benmeehan/attendance-agent/pkg/geo"
	"github.com/benmeehan/attendance-agent/pkg/location"
	"github.com/benmeehan/attendance-agent/pkg/mqtt"
	"github.com/benmeehan/attendance-agent/pkg/profile"
)

// Position provider kinds accepted by location.provider.
const (
	ProviderGPS    = "gps"
	ProviderGoogle = "google"
	ProviderStatic = "static"
)

// Attendance backends accepted by attendance.backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config represents the structure of the configuration file.
type Config struct {
	Logging struct {
		Level  string `yaml:"level"`  // zerolog level name
		Pretty bool   `yaml:"pretty"` // Human readable console output instead of JSON
	} `yaml:"logging"`

	Server struct {
		Address         string        `yaml:"address"`          // Listen address of the HTTP API
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Grace period for in-flight requests
	} `yaml:"server"`

	// Anchor is the classroom the student must be near to check in
	Anchor geo.Anchor `yaml:"anchor"`

	CheckIn struct {
		VerifyTimeout time.Duration `yaml:"verify_timeout"` // Upper bound on a single position request
		Subject       string        `yaml:"subject"`        // Subject of the default session
		SubjectCode   string        `yaml:"subject_code"`   // Subject code of the default session
	} `yaml:"checkin"`

	Location struct {
		Provider          string  `yaml:"provider"`        // gps, google or static
		GPSDevicePort     string  `yaml:"gps_device_port"` // UNIX Port where the GPS sensor is mounted
		GPSDeviceBaudRate int     `yaml:"gps_baud_rate"`   // The Baud rate for GPS sensor
		MaxHDOP           float64 `yaml:"max_hdop"`        // Worst HDOP accepted for high accuracy fixes
		MapsAPIKey        string  `yaml:"maps_api_key"`    // Google maps API Key
		ModemIndex        int     `yaml:"modem_index"`     // ModemManager index used for cell tower lookups
		Static            struct {
			Latitude  float64 `yaml:"latitude"`
			Longitude float64 `yaml:"longitude"`
			Accuracy  float64 `yaml:"accuracy"`
		} `yaml:"static"`
	} `yaml:"location"`

	Attendance struct {
		Backend    string `yaml:"backend"`     // file, sqlite or redis
		FilePath   string `yaml:"file_path"`   // JSON history file for the file backend
		SQLitePath string `yaml:"sqlite_path"` // Database path for the sqlite backend
		RedisAddr  string `yaml:"redis_addr"`  // host:port for the redis backend
		RedisKey   string `yaml:"redis_key"`   // List key for the redis backend
	} `yaml:"attendance"`

	MQTT struct {
		Enabled       bool   `yaml:"enabled"`        // Mirror committed records to MQTT
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate
		Topic         string `yaml:"topic"`          // Topic committed records are published on
		QOS           int    `yaml:"qos"`            // MQTT QoS level for record messages

		PublishTimeout time.Duration `yaml:"publish_timeout"` // Upper bound on waiting for a publish acknowledgement

		HeartbeatTopic    string        `yaml:"heartbeat_topic"`    // Topic the agent status is published on
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // Interval between heartbeats, 0 disables them
	} `yaml:"mqtt"`

	Documents struct {
		Enabled   bool   `yaml:"enabled"`    // Upload OD pass documents to object storage
		Endpoint  string `yaml:"endpoint"`   // S3 compatible endpoint
		AccessKey string `yaml:"access_key"` // Access key ID
		SecretKey string `yaml:"secret_key"` // Secret access key
		Bucket    string `yaml:"bucket"`     // Bucket documents are stored in
		Region    string `yaml:"region"`     // Bucket region
		UseSSL    bool   `yaml:"use_ssl"`    // Use TLS to reach the endpoint
		Workers   int    `yaml:"workers"`    // Concurrent document analyses
	} `yaml:"documents"`

	AI struct {
		APIKey  string        `yaml:"api_key"` // Gemini API key, empty disables AI and uses fallbacks
		Model   string        `yaml:"model"`   // Model name
		Timeout time.Duration `yaml:"timeout"` // Per request timeout
	} `yaml:"ai"`

	Profile struct {
		File    string                 `yaml:"file"`    // Path to the student profile file
		Default profile.StudentProfile `yaml:"default"` // Used until the profile file exists
	} `yaml:"profile"`
}

// LoadConfig loads the YAML configuration from the specified file, fills in defaults and
// validates it. It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", filename, err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	setDefault(&c.Logging.Level, "info")
	setDefault(&c.Server.Address, ":8080")
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.CheckIn.VerifyTimeout <= 0 {
		c.CheckIn.VerifyTimeout = constants.DefaultVerifyTimeout
	}
	setDefault(&c.Location.Provider, ProviderGPS)
	if c.Location.GPSDeviceBaudRate == 0 {
		c.Location.GPSDeviceBaudRate = 9600
	}
	if c.Location.MaxHDOP <= 0 {
		c.Location.MaxHDOP = location.DefaultMaxHDOP
	}
	setDefault(&c.Attendance.Backend, BackendFile)
	setDefault(&c.Attendance.FilePath, "data/attendance.json")
	setDefault(&c.Attendance.SQLitePath, "data/attendance.db")
	setDefault(&c.MQTT.Topic, "attendance/records")
	setDefault(&c.MQTT.HeartbeatTopic, "attendance/heartbeat")
	if c.MQTT.PublishTimeout <= 0 {
		c.MQTT.PublishTimeout = mqtt.DefaultPublishTimeout
	}
	if c.Documents.Workers <= 0 {
		c.Documents.Workers = constants.DefaultAnalysisWorkers
	}
	setDefault(&c.AI.Model, "gemini-3-flash-preview")
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 30 * time.Second
	}
	setDefault(&c.Profile.File, "data/profile.json")
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Anchor.Validate(); err != nil {
		errs = append(errs, err)
	}

	providers := SliceToSet([]string{ProviderGPS, ProviderGoogle, ProviderStatic})
	if _, ok := providers[c.Location.Provider]; !ok {
		errs = append(errs, fmt.Errorf("unknown location provider %q", c.Location.Provider))
	}
	if c.Location.Provider == ProviderGPS && c.Location.GPSDevicePort == "" {
		errs = append(errs, errors.New("location.gps_device_port is required for the gps provider"))
	}
	if c.Location.Provider == ProviderGoogle && c.Location.MapsAPIKey == "" {
		errs = append(errs, errors.New("location.maps_api_key is required for the google provider"))
	}

	backends := SliceToSet([]string{BackendFile, BackendSQLite, BackendRedis})
	if _, ok := backends[c.Attendance.Backend]; !ok {
		errs = append(errs, fmt.Errorf("unknown attendance backend %q", c.Attendance.Backend))
	}
	if c.Attendance.Backend == BackendRedis && c.Attendance.RedisAddr == "" {
		errs = append(errs, errors.New("attendance.redis_addr is required for the redis backend"))
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QOS))
	}
	if c.Documents.Enabled && (c.Documents.Endpoint == "" || c.Documents.Bucket == "") {
		errs = append(errs, errors.New("documents.endpoint and documents.bucket are required when documents are enabled"))
	}

	return errors.Join(errs...)
}

func setDefault(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
