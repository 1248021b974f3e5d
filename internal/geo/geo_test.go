package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMetersOneDegreeAtEquator(t *testing.T) {
	// One degree of longitude along the equator is ~111.195 km.
	d := DistanceMeters(0, 0, 0, 1)
	assert.InDelta(t, 111195, d, 50)
}

func TestDistanceMetersZeroForSamePoint(t *testing.T) {
	assert.Zero(t, DistanceMeters(31.5, 74.3, 31.5, 74.3))
}

func TestDistanceSymmetric(t *testing.T) {
	a := Point{Latitude: 31.5204, Longitude: 74.3587}
	b := Point{Latitude: 31.5497, Longitude: 74.3436}

	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestWithinRadiusGeofence(t *testing.T) {
	origin := Point{Latitude: 31.5204, Longitude: 74.3587}

	// 0.0000899 degrees of latitude is ~9.996 m, 0.0000901 is ~10.019 m.
	inside := Point{Latitude: origin.Latitude + 0.0000899, Longitude: origin.Longitude}
	outside := Point{Latitude: origin.Latitude + 0.0000901, Longitude: origin.Longitude}

	assert.True(t, WithinRadius(origin, inside, 10.0), "point %.3f m away should pass a 10 m geofence", Distance(origin, inside))
	assert.False(t, WithinRadius(origin, outside, 10.0), "point %.3f m away should fail a 10 m geofence", Distance(origin, outside))
}

func TestWithinRadiusBoundaryInclusive(t *testing.T) {
	origin := Point{Latitude: 31.5204, Longitude: 74.3587}
	point := Point{Latitude: origin.Latitude + 0.00009, Longitude: origin.Longitude}

	d := Distance(origin, point)
	assert.True(t, WithinRadius(origin, point, d), "point exactly at the radius should pass")
	assert.False(t, WithinRadius(origin, point, d-0.001), "point just past the radius should fail")
}

func TestValidLatitudeLongitude(t *testing.T) {
	tests := []struct {
		name  string
		lat   float64
		lon   float64
		valid bool
	}{
		{name: "lahore", lat: 31.5, lon: 74.3, valid: true},
		{name: "poles", lat: 90, lon: -180, valid: true},
		{name: "lat too high", lat: 90.01, lon: 0, valid: false},
		{name: "lat too low", lat: -91, lon: 0, valid: false},
		{name: "lon too high", lat: 0, lon: 180.5, valid: false},
		{name: "lon too low", lat: 0, lon: -181, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidLatitude(tt.lat) && ValidLongitude(tt.lon))
		})
	}
}
