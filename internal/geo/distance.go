package geo

import "math"

const (
	// EarthRadiusKm is Earth's radius in kilometers for the Haversine calculation.
	EarthRadiusKm = 6371.0
	// MaxTripKm is the longest raw trip distance an order may cover.
	// The bound is exclusive: exactly 100.0 km is still accepted.
	MaxTripKm = 100.0
)

// HaversineKm calculates the great-circle distance between two points
// on Earth in kilometers using the Haversine formula. It is symmetric in
// its arguments and zero for identical points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// RoundKmToTenths applies the canonical distance rounding: half away from
// zero to one decimal place, returned as an integer count of tenths of a km.
// Every service that touches price must round through this function, or the
// prices in their projections will silently disagree.
func RoundKmToTenths(km float64) int64 {
	return int64(math.Round(km * 10))
}

// WithinTripLimit reports whether a raw distance is acceptable for an order.
func WithinTripLimit(km float64) bool {
	return km <= MaxTripKm
}

// ValidateCoordinates checks that a latitude/longitude pair is on the globe.
func ValidateCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
