// Package entity holds the plain data shapes exchanged across the
// planner's package boundary: coordinates, road features, vehicle
// requests, and the timed plans returned to callers.
package entity

import "github.com/paulmach/orb"

// Coordinate is a geographic point (WGS84) as exchanged with callers.
// Internal geometry code works in terms of orb.Point instead.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts a Coordinate to the orb.Point form ([lng, lat]) used
// by the geometry and graph packages.
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// FromPoint builds a Coordinate from an orb.Point.
func FromPoint(p orb.Point) Coordinate {
	return Coordinate{Lat: p[1], Lng: p[0]}
}
