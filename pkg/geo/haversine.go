// Package geo provides great-circle distances and a spatial index over the
// located places of a routes map.
package geo

import (
	"math"

	"logistics/pkg/logistics"
)

const earthRadiusMeters = 6_371_000.0

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b logistics.LatLng) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// EquirectangularDist returns an approximate distance in meters.
// Use for candidate filtering and comparisons, not for route distances.
func EquirectangularDist(lat1, lon1, lat2, lon2 float64) float64 {
	x := (lon2 - lon1) * math.Cos((lat1+lat2)/2*math.Pi/180) * math.Pi / 180
	y := (lat2 - lat1) * math.Pi / 180
	return math.Sqrt(x*x+y*y) * earthRadiusMeters
}

// ValidLatLng reports whether ll is a finite coordinate within range.
func ValidLatLng(ll logistics.LatLng) bool {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return false
	}
	return ll.Lat >= -90 && ll.Lat <= 90 && ll.Lng >= -180 && ll.Lng <= 180
}
