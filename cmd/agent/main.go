package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/attendance-agent/internal/api"
	"github.com/benmeehan/attendance-agent/internal/attendance"
	"github.com/benmeehan/attendance-agent/internal/checkin"
	"github.com/benmeehan/attendance-agent/internal/odpass"
	"github.com/benmeehan/attendance-agent/internal/registry"
	"github.com/benmeehan/attendance-agent/internal/service_registry"
	"github.com/benmeehan/attendance-agent/internal/services"
	"github.com/benmeehan/attendance-agent/internal/telemetry"
	"github.com/benmeehan/attendance-agent/internal/utils"
	"github.com/benmeehan/attendance-agent/pkg/file"
	"github.com/benmeehan/attendance-agent/pkg/insights"
	"github.com/benmeehan/attendance-agent/pkg/location"
	"github.com/benmeehan/attendance-agent/pkg/mqtt"
	"github.com/benmeehan/attendance-agent/pkg/profile"
	"github.com/benmeehan/attendance-agent/pkg/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const configPath = "configs/config.yaml"

func main() {
	// Bootstrap logger until the configured one is available
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = newLogger(config)
	telemetry.InitMetrics()

	ctx := context.Background()

	// Student profile stamps the roll number on every record
	studentProfile := profile.NewFileProfile(config.Profile.File, fileClient, config.Profile.Default)
	if err := studentProfile.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load student profile")
	}

	provider, err := newProvider(config)
	if err != nil {
		log.Fatal().Err(err).Str("provider", config.Location.Provider).Msg("Failed to create position provider")
	}
	provider = location.WithTimeout(provider, config.CheckIn.VerifyTimeout)

	repo, closeRepo, err := newRepository(ctx, config, fileClient, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", config.Attendance.Backend).Msg("Failed to open attendance store")
	}
	defer closeRepo()

	// Mirror committed records to MQTT when enabled
	var mqttService *mqtt.MqttService
	var clientID string
	if config.MQTT.Enabled {
		// Generate a unique MQTT Client ID by appending a UUID
		clientID = config.MQTT.ClientID + "-" + uuid.New().String()
		log.Info().Str("client_id", clientID).Msg("Using MQTT client ID")
		mqttService = mqtt.NewMqttService(fileClient, config.MQTT.Broker, clientID, config.MQTT.CACertificate)
		repo = attendance.NewMQTTPublisher(repo, config.MQTT.Topic, config.MQTT.QOS, config.MQTT.PublishTimeout, mqttService, log)
	}

	var storage s3.ObjectStorageClient
	if config.Documents.Enabled {
		objectStorage := s3.NewObjectStorage(config.Documents.Bucket, config.Documents.Region)
		if err := objectStorage.Connect(ctx, config.Documents.Endpoint, config.Documents.AccessKey, config.Documents.SecretKey, config.Documents.UseSSL); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to document storage")
		}
		storage = objectStorage
	}

	var generator insights.ContentGenerator
	if config.AI.APIKey != "" {
		generator, err = insights.NewGeminiGenerator(ctx, config.AI.APIKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create AI client")
		}
	} else {
		log.Warn().Msg("AI API key is not set, insights will use fallbacks")
	}
	ai := insights.NewService(generator, config.AI.Model, config.AI.Timeout, log)

	pool := utils.NewWorkerPool(config.Documents.Workers)
	defer pool.Shutdown()
	passes := odpass.NewService(odpass.NewMemoryRepository(), ai, storage, pool, log)

	handler, err := api.NewHandler(api.Dependencies{
		NewMachine: func(session checkin.Session) (*checkin.Machine, error) {
			session.RollNo = studentProfile.RollNo()
			return checkin.NewMachine(provider, repo, config.Anchor, session, log,
				checkin.WithVerifyTimeout(config.CheckIn.VerifyTimeout))
		},
		DefaultSession: checkin.Session{Subject: config.CheckIn.Subject, SubjectCode: config.CheckIn.SubjectCode},
		Anchor:         config.Anchor,
		History:        repo,
		Advisor:        ai,
		Analyzer:       ai,
		Passes:         passes,
		Profile:        studentProfile,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open check-in session")
	}

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(log)
	err = serviceRegistry.RegisterServices([]service_registry.Definition{
		{
			Name:        "mqtt",
			Enabled:     mqttService != nil,
			Constructor: func() (registry.Service, error) { return mqttService, nil },
		},
		{
			Name:    "heartbeat",
			Enabled: mqttService != nil && config.MQTT.HeartbeatInterval > 0,
			Constructor: func() (registry.Service, error) {
				return services.NewHeartbeatService(config.MQTT.HeartbeatTopic, config.MQTT.HeartbeatInterval, clientID,
					config.MQTT.QOS, mqttService, handler.Snapshot, log), nil
			},
		},
		{
			Name:    "api",
			Enabled: true,
			Constructor: func() (registry.Service, error) {
				return api.NewServer(config.Server.Address, config.Server.ShutdownTimeout, handler, log), nil
			},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().
		Str("anchor", config.Anchor.Name).
		Float64("radius_m", config.Anchor.RadiusMeters).
		Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Some services failed to stop")
	}
}

func newLogger(config *utils.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Logging.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func newProvider(config *utils.Config) (location.Provider, error) {
	switch config.Location.Provider {
	case utils.ProviderGoogle:
		return location.NewGoogleGeolocationProvider(config.Location.MapsAPIKey, config.Location.ModemIndex)
	case utils.ProviderStatic:
		s := config.Location.Static
		return location.NewStaticProvider(s.Latitude, s.Longitude, s.Accuracy), nil
	case utils.ProviderGPS:
		return location.NewDeviceSensorProvider(config.Location.GPSDevicePort, config.Location.GPSDeviceBaudRate, config.Location.MaxHDOP), nil
	default:
		return nil, fmt.Errorf("unknown location provider %q", config.Location.Provider)
	}
}

// newRepository opens the configured attendance backend and returns its cleanup.
func newRepository(ctx context.Context, config *utils.Config, fileClient file.FileOperations, log zerolog.Logger) (attendance.Repository, func(), error) {
	switch config.Attendance.Backend {
	case utils.BackendSQLite:
		store, err := attendance.NewSQLiteStore(config.Attendance.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case utils.BackendRedis:
		store := attendance.NewRedisStore(config.Attendance.RedisAddr, config.Attendance.RedisKey)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case utils.BackendFile:
		return attendance.NewFileStore(config.Attendance.FilePath, fileClient, log), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown attendance backend %q", config.Attendance.Backend)
	}
}
