package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKmZeroForSamePoint(t *testing.T) {
	p := Point{Lat: 40.4168, Lon: -3.7038}
	assert.Zero(t, DistanceKm(p, p))
}

func TestDistanceKmKnownPairs(t *testing.T) {
	madrid := Point{Lat: 40.4168, Lon: -3.7038}
	barcelona := Point{Lat: 41.3874, Lon: 2.1686}
	assert.InDelta(t, 505, DistanceKm(madrid, barcelona), 5)

	// One degree of longitude on the equator.
	assert.InDelta(t, 111.19, DistanceKm(Point{0, 0}, Point{0, 1}), 0.05)
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := Point{Lat: 10, Lon: 10}
	b := Point{Lat: -33.87, Lon: 151.21}
	assert.InDelta(t, DistanceKm(a, b), DistanceKm(b, a), 1e-9)
}

func TestWithinRadiusMonotonic(t *testing.T) {
	origin := Point{0, 0}
	far := Point{10, 10}
	d := DistanceKm(origin, far)

	assert.True(t, Within(origin, far, d))
	assert.True(t, Within(origin, far, d+1))
	assert.False(t, Within(origin, far, d-1))
	assert.False(t, Within(origin, far, 1))
}

func TestPointValid(t *testing.T) {
	assert.True(t, Point{90, 180}.Valid())
	assert.True(t, Point{-90, -180}.Valid())
	assert.False(t, Point{90.1, 0}.Valid())
	assert.False(t, Point{0, -180.5}.Valid())
	assert.False(t, Point{math.NaN(), 0}.Valid())
}
