// Package geo provides the geometric primitives shared by the routing
// engines: great-circle distance, bearings, destination projection, and
// point-to-segment distance against a route polyline.
//
// Point-to-segment math uses an equirectangular planar projection, which is
// accurate to well under a meter at pedestrian scale (segments of tens of
// meters).
package geo

import (
	"math"

	"waispath/internal/types"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance between two coordinates in
// meters.
func Haversine(a, b types.Location) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b types.Location) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := degrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// Destination projects a point from origin along the given bearing (degrees)
// for the given distance (meters).
func Destination(origin types.Location, bearingDeg, distanceMeters float64) types.Location {
	lat1 := radians(origin.Latitude)
	lon1 := radians(origin.Longitude)
	brng := radians(bearingDeg)
	d := distanceMeters / earthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(
		math.Sin(brng)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
	)

	return types.Location{
		Latitude:  degrees(lat2),
		Longitude: math.Mod(degrees(lon2)+540, 360) - 180,
	}
}

// DistanceToSegment returns the perpendicular distance in meters from point p
// to the segment [a, b], clamped to the segment endpoints.
func DistanceToSegment(p, a, b types.Location) float64 {
	// Project onto a local plane centered at a. Longitude is scaled by the
	// cosine of the latitude so east-west meters match north-south meters.
	cosLat := math.Cos(radians(a.Latitude))

	px := radians(p.Longitude-a.Longitude) * cosLat * earthRadiusMeters
	py := radians(p.Latitude-a.Latitude) * earthRadiusMeters
	bx := radians(b.Longitude-a.Longitude) * cosLat * earthRadiusMeters
	by := radians(b.Latitude-a.Latitude) * earthRadiusMeters

	segLenSq := bx*bx + by*by
	if segLenSq == 0 {
		return math.Hypot(px, py)
	}

	t := (px*bx + py*by) / segLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return math.Hypot(px-t*bx, py-t*by)
}

// DistanceToPolyline returns the minimum distance in meters from p to any
// segment of the polyline, and the index of the nearest segment's start
// point. A polyline with fewer than two points yields +Inf and -1.
func DistanceToPolyline(p types.Location, line []types.Location) (float64, int) {
	if len(line) < 2 {
		return math.Inf(1), -1
	}

	best := math.Inf(1)
	bestIdx := -1
	for i := 0; i < len(line)-1; i++ {
		d := DistanceToSegment(p, line[i], line[i+1])
		if d < best {
			best = d
			bestIdx = i
		}
	}
	return best, bestIdx
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
