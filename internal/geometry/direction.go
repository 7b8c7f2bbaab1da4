package geometry

import "github.com/paulmach/orb"

// Direction is the coarse heading of one point as seen from another
type Direction string

const (
	West Direction = "West"
	East Direction = "East"
	Same Direction = "Same"
)

// Directions lists the directions that carry connections, in output order
var Directions = []Direction{West, East}

// Heading compares only the easting (first axis) of the two points.
// Northing is ignored on purpose: station typing downstream is calibrated to it.
func Heading(from, to orb.Point) Direction {
	switch {
	case to[0] > from[0]:
		return East
	case to[0] < from[0]:
		return West
	default:
		return Same
	}
}

// Opposite returns the reverse direction; Same stays Same
func (d Direction) Opposite() Direction {
	switch d {
	case West:
		return East
	case East:
		return West
	default:
		return Same
	}
}
