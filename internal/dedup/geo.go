package dedup

import "github.com/golang/geo/s2"

// earthRadiusMeters is the mean Earth radius used to convert geodesic angles
// to distances.
const earthRadiusMeters = 6371010.0

// distanceMeters returns the geodesic distance between two lat/lon points.
func distanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * earthRadiusMeters
}
