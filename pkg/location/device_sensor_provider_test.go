package location

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"
)

const (
	goodFix = "$GPGGA,092750.000,1304.9620,N,08016.2420,E,1,8,1.03,61.7,M,-19.6,M,,*4C"
	poorFix = "$GPGGA,092751.000,1304.9620,N,08016.2420,E,1,5,4.50,61.7,M,-19.6,M,,*43"
	noFix   = "$GPGGA,092749.000,,,,,0,0,,,M,,M,,*49"
	rmc     = "$GPRMC,092750.000,A,1304.9620,N,08016.2420,E,0.02,31.66,280511,,,A*58"
)

func sensorWithLines(lines ...string) *DeviceSensorProvider {
	p := NewDeviceSensorProvider("/dev/ttyUSB0", 9600, 2.0)
	p.openPort = func(*serial.Config) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(strings.Join(lines, "\r\n") + "\r\n")), nil
	}
	return p
}

func TestDeviceSensorProvider_ParsesFirstGGA(t *testing.T) {
	p := sensorWithLines(rmc, noFix, goodFix)

	coord, err := p.RequestPosition(context.Background(), Options{HighAccuracy: true})
	require.NoError(t, err)
	assert.InDelta(t, 13.0827, coord.Latitude, 1e-6)
	assert.InDelta(t, 80.2707, coord.Longitude, 1e-6)
	assert.InDelta(t, 1.03*hdopToMeters, coord.Accuracy, 1e-9)
	assert.False(t, coord.Timestamp.IsZero())
}

func TestDeviceSensorProvider_HighAccuracySkipsPoorFix(t *testing.T) {
	coord, err := sensorWithLines(poorFix, goodFix).RequestPosition(context.Background(), Options{HighAccuracy: true})
	require.NoError(t, err)
	assert.InDelta(t, 1.03*hdopToMeters, coord.Accuracy, 1e-9)

	_, err = sensorWithLines(poorFix).RequestPosition(context.Background(), Options{HighAccuracy: true})
	assert.True(t, errors.Is(err, ErrPositionUnavailable))

	coord, err = sensorWithLines(poorFix).RequestPosition(context.Background(), Options{})
	require.NoError(t, err)
	assert.InDelta(t, 4.5*hdopToMeters, coord.Accuracy, 1e-9)
}

func TestDeviceSensorProvider_NoFix(t *testing.T) {
	_, err := sensorWithLines(noFix, rmc).RequestPosition(context.Background(), Options{})
	require.Error(t, err)
	assert.Equal(t, PositionUnavailable, KindOf(err))
}

func TestDeviceSensorProvider_OpenErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		kind FailureKind
	}{
		"missing device":    {&fs.PathError{Op: "open", Path: "/dev/ttyUSB0", Err: fs.ErrNotExist}, CapabilityUnavailable},
		"permission denied": {&fs.PathError{Op: "open", Path: "/dev/ttyUSB0", Err: fs.ErrPermission}, PermissionDenied},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewDeviceSensorProvider("/dev/ttyUSB0", 9600, 0)
			p.openPort = func(*serial.Config) (io.ReadCloser, error) { return nil, tc.err }

			_, err := p.RequestPosition(context.Background(), Options{})
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestDeviceSensorProvider_NoPortConfigured(t *testing.T) {
	_, err := NewDeviceSensorProvider("", 9600, 0).RequestPosition(context.Background(), Options{})
	assert.True(t, errors.Is(err, ErrCapabilityUnavailable))
}
