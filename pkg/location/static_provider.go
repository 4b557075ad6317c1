package location

import (
	"context"
	"time"
)

// StaticProvider implements Provider with a fixed location.
type StaticProvider struct {
	Lat      float64
	Lng      float64
	Accuracy float64
}

// NewStaticProvider creates a provider that always returns the same location.
func NewStaticProvider(lat, lng, accuracy float64) *StaticProvider {
	return &StaticProvider{
		Lat:      lat,
		Lng:      lng,
		Accuracy: accuracy,
	}
}

// RequestPosition returns the fixed location unless ctx is already done.
func (s *StaticProvider) RequestPosition(ctx context.Context, _ Options) (Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return Coordinate{}, err
	}
	return Coordinate{
		Latitude:  s.Lat,
		Longitude: s.Lng,
		Accuracy:  s.Accuracy,
		Timestamp: time.Now().UTC(),
	}, nil
}
