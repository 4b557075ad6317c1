package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// ErrInvalidAnchor is returned when a classroom anchor cannot be used for range checks.
var ErrInvalidAnchor = errors.New("invalid anchor configuration")

// Point is a latitude/longitude pair in signed decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// IsZero reports whether p is the unset (0, 0) sentinel.
func (p Point) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

// Anchor is the reference coordinate a check-in is measured against.
type Anchor struct {
	Name         string  `json:"name" yaml:"name"`
	Point        Point   `json:"point" yaml:",inline"`
	RadiusMeters float64 `json:"radius_meters" yaml:"radius_meters"`
}

// Validate rejects anchors that would make every range check meaningless.
func (a Anchor) Validate() error {
	if a.Point.IsZero() {
		return fmt.Errorf("%w: coordinate is unset", ErrInvalidAnchor)
	}
	if math.IsNaN(a.Point.Latitude) || a.Point.Latitude < -90 || a.Point.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidAnchor, a.Point.Latitude)
	}
	if math.IsNaN(a.Point.Longitude) || a.Point.Longitude < -180 || a.Point.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidAnchor, a.Point.Longitude)
	}
	if !(a.RadiusMeters > 0) {
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidAnchor, a.RadiusMeters)
	}
	return nil
}

// Contains evaluates p against the anchor and returns the distance and whether it is in range.
func (a Anchor) Contains(p Point) (float64, bool) {
	d := DistanceMeters(p, a.Point)
	return d, WithinRange(d, a.RadiusMeters)
}

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	phi1 := toRadians(a.Latitude)
	phi2 := toRadians(b.Latitude)
	dPhi := toRadians(b.Latitude - a.Latitude)
	dLambda := toRadians(b.Longitude - a.Longitude)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	// floating point can push h slightly outside [0, 1] near the extremes
	h = math.Max(0, math.Min(1, h))

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WithinRange reports whether distance is inside radius. The boundary is inclusive.
func WithinRange(distance, radius float64) bool {
	return distance <= radius
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
