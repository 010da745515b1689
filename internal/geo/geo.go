package geo

import (
	"math"
	"sort"

	"github.com/example/inspection-dispatch/internal/models"
)

// EarthRadiusKm is the single source of truth for distance math. Every
// consumer that filters by distance goes through this package; the constant
// must not be duplicated elsewhere.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// IsWithinRadius reports whether the target is within radiusKm of origin.
// A nil origin (no fix yet) passes everything through rather than failing
// closed: a driver without a fix still sees offers.
func IsWithinRadius(origin *models.GeoPoint, lat, lon, radiusKm float64) bool {
	if origin == nil {
		return true
	}
	return Haversine(origin.Lat, origin.Lon, lat, lon) <= radiusKm
}

// SortByDistance orders entries nearest-first relative to origin. The at
// callback extracts each entry's coordinates. A nil origin leaves the input
// order untouched.
func SortByDistance[T any](origin *models.GeoPoint, entries []T, at func(T) (lat, lon float64)) []T {
	out := make([]T, len(entries))
	copy(out, entries)
	if origin == nil {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		li, gi := at(out[i])
		lj, gj := at(out[j])
		return Haversine(origin.Lat, origin.Lon, li, gi) < Haversine(origin.Lat, origin.Lon, lj, gj)
	})
	return out
}
