package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

const (
	// hdopToMeters approximates horizontal accuracy from HDOP using a typical receiver UERE.
	hdopToMeters = 5.0

	// DefaultMaxHDOP is the dilution ceiling applied to high-accuracy requests.
	DefaultMaxHDOP = 2.0
)

// DeviceSensorProvider is responsible for retrieving location data from a GPS device connected via serial port.
type DeviceSensorProvider struct {
	port     string // Serial port to which the GPS device is connected
	baudRate int    // Baud rate for the serial communication
	maxHDOP  float64

	openPort func(*serial.Config) (io.ReadCloser, error)
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int, maxHDOP float64) *DeviceSensorProvider {
	if maxHDOP <= 0 {
		maxHDOP = DefaultMaxHDOP
	}
	return &DeviceSensorProvider{
		port:     port,
		baudRate: baudRate,
		maxHDOP:  maxHDOP,
		openPort: func(c *serial.Config) (io.ReadCloser, error) {
			return serial.OpenPort(c)
		},
	}
}

// RequestPosition reads NMEA sentences until the first usable GGA fix.
func (d *DeviceSensorProvider) RequestPosition(ctx context.Context, opts Options) (Coordinate, error) {
	if d.port == "" {
		return Coordinate{}, NewPositionError(CapabilityUnavailable, errors.New("no gps device port configured"))
	}

	s, err := d.openPort(&serial.Config{Name: d.port, Baud: d.baudRate, ReadTimeout: time.Second})
	if err != nil {
		return Coordinate{}, classifyOpenError(err)
	}

	// Closing the port is the only way to unblock a pending serial read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		s.Close()
	}()

	coord, err := d.scanFix(s, opts)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return Coordinate{}, NewPositionError(Timeout, ctxErr)
		}
		return Coordinate{}, ctxErr
	}
	return coord, err
}

func (d *DeviceSensorProvider) scanFix(r io.Reader, opts Options) (Coordinate, error) {
	var lastErr error

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$GPGGA") && !strings.HasPrefix(line, "$GNGGA") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			lastErr = err
			continue
		}
		gga, ok := sentence.(nmea.GGA)
		if !ok || gga.FixQuality == nmea.Invalid {
			continue
		}
		if opts.HighAccuracy && gga.HDOP > d.maxHDOP {
			lastErr = fmt.Errorf("hdop %.2f above ceiling %.2f", gga.HDOP, d.maxHDOP)
			continue
		}

		return Coordinate{
			Latitude:  gga.Latitude,
			Longitude: gga.Longitude,
			Accuracy:  gga.HDOP * hdopToMeters,
			Timestamp: time.Now().UTC(),
		}, nil
	}

	if err := scanner.Err(); err != nil {
		return Coordinate{}, NewPositionError(PositionUnavailable, err)
	}
	if lastErr != nil {
		return Coordinate{}, NewPositionError(PositionUnavailable, lastErr)
	}
	return Coordinate{}, NewPositionError(PositionUnavailable, errors.New("no valid GPS data found"))
}

func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return NewPositionError(PermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return NewPositionError(CapabilityUnavailable, err)
	default:
		return NewPositionError(CapabilityUnavailable, err)
	}
}
