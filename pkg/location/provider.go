package location

import (
	"context"
	"time"

	"github.com/benmeehan/attendance-agent/pkg/geo"
)

// Coordinate is a single position fix reported by a Provider.
type Coordinate struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"` // meters, 0 when the source does not report it
	Timestamp time.Time `json:"timestamp"`
}

// Point drops the fix metadata.
func (c Coordinate) Point() geo.Point {
	return geo.Point{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Options tunes a single position request.
type Options struct {
	HighAccuracy bool
}

// Provider resolves the current device position once per call. Implementations never retry.
type Provider interface {
	RequestPosition(ctx context.Context, opts Options) (Coordinate, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, opts Options) (Coordinate, error)

// RequestPosition calls f.
func (f ProviderFunc) RequestPosition(ctx context.Context, opts Options) (Coordinate, error) {
	return f(ctx, opts)
}
