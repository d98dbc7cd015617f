// Package geo wraps paulmach/orb with the handful of spherical helpers the
// pipeline uses. Coordinates are handled as orb.Point, which stores
// longitude first.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Point builds an orb.Point from latitude and longitude.
func Point(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b orb.Point) float64 {
	return orbgeo.DistanceHaversine(a, b)
}

// Bearing returns the initial bearing from a to b in degrees, normalized to [0, 360).
func Bearing(a, b orb.Point) float64 {
	return NormalizeDegrees(orbgeo.Bearing(a, b))
}

// Offset returns the point reached by travelling the given distance (meters)
// on the given bearing (degrees) from p.
func Offset(p orb.Point, bearing, distance float64) orb.Point {
	return orbgeo.PointAtBearingAndDistance(p, bearing, distance)
}

// RingArea returns the area enclosed by the ring in square meters.
func RingArea(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	closed := r
	if !r.Closed() {
		closed = append(append(orb.Ring{}, r...), r[0])
	}
	return math.Abs(orbgeo.Area(closed))
}

// NormalizeDegrees maps any angle onto [0, 360).
func NormalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
