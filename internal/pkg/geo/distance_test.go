package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm_SamePoint(t *testing.T) {
	t.Parallel()

	points := []Point{
		{Lat: 0, Lon: 0},
		{Lat: 24.1301761, Lon: -110.3111813},
		{Lat: 90, Lon: 0},
		{Lat: -90, Lon: 180},
		{Lat: 51.5, Lon: -0.12},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, DistanceKm(p, p), "point %+v", p)
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]Point{
		{{Lat: 24.1301761, Lon: -110.3111813}, {Lat: 24.15, Lon: -110.30}},
		{{Lat: 51.5074, Lon: -0.1278}, {Lat: 48.8566, Lon: 2.3522}},
		{{Lat: -33.8688, Lon: 151.2093}, {Lat: 40.7128, Lon: -74.0060}},
		{{Lat: 89.9, Lon: 10}, {Lat: -89.9, Lon: -170}},
	}
	for _, pair := range pairs {
		ab := DistanceKm(pair[0], pair[1])
		ba := DistanceKm(pair[1], pair[0])
		assert.InDelta(t, ab, ba, 1e-9)
	}
}

func TestDistanceKm_KnownDistances(t *testing.T) {
	t.Parallel()

	// London to Paris is roughly 343.5 km along the great circle.
	d := DistanceKm(Point{Lat: 51.5074, Lon: -0.1278}, Point{Lat: 48.8566, Lon: 2.3522})
	assert.InDelta(t, 343.5, d, 1.0)

	// One degree of longitude on the equator.
	d = DistanceKm(Point{Lat: 0, Lon: 0}, Point{Lat: 0, Lon: 1})
	assert.InDelta(t, 2*math.Pi*EarthRadiusKm/360, d, 1e-6)
}

func TestDistanceKm_AntipodalAndPolar(t *testing.T) {
	t.Parallel()

	half := math.Pi * EarthRadiusKm

	d := DistanceKm(Point{Lat: 0, Lon: 0}, Point{Lat: 0, Lon: 180})
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, half, d, 1e-3)

	d = DistanceKm(Point{Lat: 90, Lon: 0}, Point{Lat: -90, Lon: 0})
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, half, d, 1e-3)

	d = DistanceKm(Point{Lat: 45, Lon: 30}, Point{Lat: -45, Lon: -150})
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, half, d, 1e-3)
}
