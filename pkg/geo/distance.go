// Package geo holds the great-circle math used for nearby-park search.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Valid reports whether the point lies within latitude/longitude bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DistanceKm returns the Haversine distance between a and b in kilometers.
func DistanceKm(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// Within reports whether b lies within radiusKm of a (inclusive).
func Within(a, b Point, radiusKm float64) bool {
	return DistanceKm(a, b) <= radiusKm
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
