package location

import (
	"context"
	"errors"
	"strings"
	"time"

	"googlemaps.github.io/maps"
)

type geolocator interface {
	Geolocate(ctx context.Context, r *maps.GeolocationRequest) (*maps.GeolocationResult, error)
}

// GoogleGeolocationProvider uses the Google Maps API to get location data.
type GoogleGeolocationProvider struct {
	client     geolocator // Maps API client for making geolocation requests
	modemIndex int

	scanWiFi  func(ctx context.Context) ([]maps.WiFiAccessPoint, error)
	scanCells func(ctx context.Context, modemIndex int) ([]maps.CellTower, error)
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int) (*GoogleGeolocationProvider, error) {
	if apiKey == "" {
		return nil, NewPositionError(CapabilityUnavailable, errors.New("google maps api key is empty"))
	}
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, NewPositionError(CapabilityUnavailable, err)
	}

	return &GoogleGeolocationProvider{
		client:     c,
		modemIndex: modemIndex,
		scanWiFi:   getWiFiAccessPoints,
		scanCells:  getCellTowers,
	}, nil
}

// RequestPosition retrieves the device's location using Google Maps Geolocation API.
// Coarse requests rely on the caller IP only; high accuracy adds nearby WiFi and cell data.
func (g *GoogleGeolocationProvider) RequestPosition(ctx context.Context, opts Options) (Coordinate, error) {
	req := &maps.GeolocationRequest{ConsiderIP: true}

	if opts.HighAccuracy {
		// Radio scans are best effort: a host without nmcli or a modem still geolocates by IP.
		if wifiAPs, err := g.scanWiFi(ctx); err == nil {
			req.WiFiAccessPoints = wifiAPs
		}
		if cellTowers, err := g.scanCells(ctx, g.modemIndex); err == nil {
			req.CellTowers = cellTowers
		}
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Coordinate{}, classifyGeolocateError(ctx, err)
	}

	return Coordinate{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		Accuracy:  resp.Accuracy,
		Timestamp: time.Now().UTC(),
	}, nil
}

func classifyGeolocateError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewPositionError(Timeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, denial := range []string{"request_denied", "keyinvalid", "accessnotconfigured", "forbidden", "403", "401"} {
		if strings.Contains(msg, denial) {
			return NewPositionError(PermissionDenied, err)
		}
	}
	return NewPositionError(PositionUnavailable, err)
}
