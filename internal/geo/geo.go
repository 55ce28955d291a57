// Package geo provides great-circle distance calculation.
package geo

import (
	"math"
)

// earthRadiusKm is the mean radius of the Earth sphere used by the
// haversine formula.
const earthRadiusKm = 6371

// Distance returns the haversine distance in kilometers between two
// coordinates. Any absent coordinate yields 0: no geographic signal,
// which by convention never satisfies a "> distance" trigger.
func Distance(lat1, lon1, lat2, lon2 *float64) float64 {
	if lat1 == nil || lon1 == nil || lat2 == nil || lon2 == nil {
		return 0
	}
	return Haversine(*lat1, *lon1, *lat2, *lon2)
}

// Haversine computes the great-circle distance in kilometers between
// two points given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
