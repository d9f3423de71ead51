// Package geo provides the minimal geographic primitives shared between the
// ship loader and the network capability: a WGS-84 point and a path segment.
package geo

import (
	"fmt"
	"math"
)

// Point is a WGS-84 geographic coordinate, longitude first to match the
// wire-level "lon,lat" pair ordering used throughout the ship file format.
type Point struct {
	Lon float64
	Lat float64
}

// Valid reports whether the point satisfies the WGS-84 range check:
// |lon| <= 180 and |lat| <= 90.
func (p Point) Valid() bool {
	return p.Lon >= -180 && p.Lon <= 180 && p.Lat >= -90 && p.Lat <= 90
}

// Validate returns a descriptive error if the point fails the WGS-84 check.
func (p Point) Validate() error {
	if !p.Valid() {
		return fmt.Errorf("coordinate out of range: lon=%g lat=%g", p.Lon, p.Lat)
	}
	return nil
}

// Line is one segment of a resolved path between two consecutive waypoints.
type Line struct {
	From   Point
	To     Point
	Length float64 // meters, great-circle distance
}

// earthRadiusMeters is the mean Earth radius used by haversine.
const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b Point) float64 {
	return haversine(a, b)
}

// BuildPath resolves an ordered sequence of waypoints into path points and
// connecting lines with their great-circle lengths. It does not compute a
// shortest-path route through a network graph; that is the Network
// capability's job. This helper only connects the given waypoints in order.
func BuildPath(waypoints []Point) (points []Point, lines []Line) {
	points = append(points, waypoints...)
	for i := 0; i+1 < len(points); i++ {
		lines = append(lines, Line{
			From:   points[i],
			To:     points[i+1],
			Length: Distance(points[i], points[i+1]),
		})
	}
	return points, lines
}

func haversine(a, b Point) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// TotalLength sums the lengths of a sequence of lines.
func TotalLength(lines []Line) float64 {
	var total float64
	for _, l := range lines {
		total += l.Length
	}
	return total
}
