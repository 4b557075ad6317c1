package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/attendance-agent/pkg/file"
	"github.com/benmeehan/attendance-agent/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
anchor:
  name: Room 301
  latitude: 13.0827
  longitude: 80.2707
  radius_meters: 20
checkin:
  verify_timeout: 10s
  subject: Operating Systems
  subject_code: CS302
location:
  provider: static
  static:
    latitude: 13.0827
    longitude: 80.27071
profile:
  default:
    name: Aarav Kumar
    roll_no: 21CS042
`)

	config, err := LoadConfig(path, file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, "Room 301", config.Anchor.Name)
	assert.Equal(t, geo.Point{Latitude: 13.0827, Longitude: 80.2707}, config.Anchor.Point)
	assert.Equal(t, 20.0, config.Anchor.RadiusMeters)
	assert.Equal(t, 10*time.Second, config.CheckIn.VerifyTimeout)
	assert.Equal(t, ProviderStatic, config.Location.Provider)
	assert.Equal(t, 80.27071, config.Location.Static.Longitude)
	assert.Equal(t, "21CS042", config.Profile.Default.RollNo)

	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, ":8080", config.Server.Address)
	assert.Equal(t, BackendFile, config.Attendance.Backend)
	assert.Equal(t, "attendance/records", config.MQTT.Topic)
	assert.Equal(t, 4, config.Documents.Workers)
	assert.Equal(t, "gemini-3-flash-preview", config.AI.Model)
}

func TestLoadConfig_RejectsUnsetAnchor(t *testing.T) {
	path := writeConfig(t, `
location:
  provider: static
`)

	_, err := LoadConfig(path, file.NewFileService())
	assert.ErrorIs(t, err, geo.ErrInvalidAnchor)
}

func TestLoadConfig_ReportsEveryProblem(t *testing.T) {
	path := writeConfig(t, `
anchor:
  latitude: 13.0827
  longitude: 80.2707
  radius_meters: -5
location:
  provider: compass
attendance:
  backend: redis
mqtt:
  enabled: true
  qos: 3
`)

	_, err := LoadConfig(path, file.NewFileService())
	require.Error(t, err)
	assert.ErrorIs(t, err, geo.ErrInvalidAnchor)
	assert.Contains(t, err.Error(), `unknown location provider "compass"`)
	assert.Contains(t, err.Error(), "attendance.redis_addr is required")
	assert.Contains(t, err.Error(), "mqtt.broker is required")
	assert.Contains(t, err.Error(), "mqtt.qos must be 0, 1 or 2")
}

func TestLoadConfig_GPSRequiresPort(t *testing.T) {
	path := writeConfig(t, `
anchor:
  latitude: 13.0827
  longitude: 80.2707
  radius_meters: 20
`)

	_, err := LoadConfig(path, file.NewFileService())
	assert.ErrorContains(t, err, "gps_device_port is required")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), file.NewFileService())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
