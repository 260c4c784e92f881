// Package geo provides the spherical math and city layout tables used to
// turn radial street addresses into WGS84 coordinates.
package geo

import "math"

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// EarthRadiusMeters is the mean Earth radius used for all great-circle math.
const EarthRadiusMeters = 6371000.0

// DestinationPoint projects from origin along the given compass bearing for
// the given great-circle distance and returns the resulting coordinate.
func DestinationPoint(origin Coordinate, distanceMeters, bearingDegrees float64) Coordinate {
	angular := distanceMeters / EarthRadiusMeters
	bearing := radians(bearingDegrees)
	lat1 := radians(origin.Lat)
	lon1 := radians(origin.Lon)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) +
		math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2))

	return Coordinate{Lat: degrees(lat2), Lon: degrees(lon2)}
}

// Distance returns the haversine great-circle distance between a and b
// in meters.
func Distance(a, b Coordinate) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
