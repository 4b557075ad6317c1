package location

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

type fakeGeolocator struct {
	req  *maps.GeolocationRequest
	resp *maps.GeolocationResult
	err  error
}

func (f *fakeGeolocator) Geolocate(_ context.Context, r *maps.GeolocationRequest) (*maps.GeolocationResult, error) {
	f.req = r
	return f.resp, f.err
}

func newFakeGoogleProvider(geo *fakeGeolocator) *GoogleGeolocationProvider {
	return &GoogleGeolocationProvider{
		client: geo,
		scanWiFi: func(context.Context) ([]maps.WiFiAccessPoint, error) {
			return []maps.WiFiAccessPoint{{MACAddress: "00:14:22:01:23:45", SignalStrength: -64}}, nil
		},
		scanCells: func(context.Context, int) ([]maps.CellTower, error) {
			return nil, errors.New("no modem")
		},
	}
}

func TestGoogleGeolocationProvider_HighAccuracyAddsRadioData(t *testing.T) {
	geo := &fakeGeolocator{resp: &maps.GeolocationResult{Location: maps.LatLng{Lat: 13.0827, Lng: 80.2707}, Accuracy: 18}}
	p := newFakeGoogleProvider(geo)

	coord, err := p.RequestPosition(context.Background(), Options{HighAccuracy: true})
	require.NoError(t, err)
	assert.Equal(t, 13.0827, coord.Latitude)
	assert.Equal(t, 80.2707, coord.Longitude)
	assert.Equal(t, 18.0, coord.Accuracy)
	assert.Len(t, geo.req.WiFiAccessPoints, 1)
	assert.Empty(t, geo.req.CellTowers)
	assert.True(t, geo.req.ConsiderIP)
}

func TestGoogleGeolocationProvider_CoarseUsesIPOnly(t *testing.T) {
	geo := &fakeGeolocator{resp: &maps.GeolocationResult{Location: maps.LatLng{Lat: 1, Lng: 2}}}
	p := newFakeGoogleProvider(geo)

	_, err := p.RequestPosition(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, geo.req.WiFiAccessPoints)
}

func TestGoogleGeolocationProvider_ErrorKinds(t *testing.T) {
	cases := map[string]struct {
		err  error
		kind FailureKind
	}{
		"denied":   {errors.New("maps: REQUEST_DENIED - The provided API key is invalid."), PermissionDenied},
		"deadline": {context.DeadlineExceeded, Timeout},
		"other":    {errors.New("maps: notFound"), PositionUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := newFakeGoogleProvider(&fakeGeolocator{err: tc.err})
			_, err := p.RequestPosition(context.Background(), Options{})
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestNewGoogleGeolocationProvider_EmptyKey(t *testing.T) {
	_, err := NewGoogleGeolocationProvider("", 0)
	assert.True(t, errors.Is(err, ErrCapabilityUnavailable))
}

func TestParseWiFiAccessPoints(t *testing.T) {
	out := "AA\\:BB\\:CC\\:DD\\:EE\\:FF:80\n--:40\nzz\\:bb\\:cc\\:dd\\:ee\\:ff:10\n"

	aps, err := parseWiFiAccessPoints(out)
	require.NoError(t, err)
	require.Len(t, aps, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", aps[0].MACAddress)
	assert.Equal(t, -60.0, aps[0].SignalStrength)
}

func TestParseCellTowers(t *testing.T) {
	out := "modem.3gpp.mcc : 404\nmodem.3gpp.mnc : 45\nmodem.3gpp.lac : 1A2B\nmodem.3gpp.cid : 00FF\n"

	towers, err := parseCellTowers(out)
	require.NoError(t, err)
	require.Len(t, towers, 1)
	assert.Equal(t, 404, towers[0].MobileCountryCode)
	assert.Equal(t, 45, towers[0].MobileNetworkCode)
	assert.Equal(t, 0x1A2B, towers[0].LocationAreaCode)
	assert.Equal(t, 0xFF, towers[0].CellID)

	_, err = parseCellTowers("modem.3gpp.mcc : 404\n")
	assert.Error(t, err)
}
