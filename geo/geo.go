// Package geo measures great-circle distances in the unit vocabulary shared
// by the grid planner, the CLI, and the HTTP API.
package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// EarthRadius is the mean radius of the earth in meters.
const EarthRadius = 6371008.8

// Unit is a supported length unit for cell sides and distances.
type Unit string

const (
	Kilometers    Unit = "kilometers"
	Meters        Unit = "meters"
	Centimeters   Unit = "centimeters"
	Millimeters   Unit = "millimeters"
	Miles         Unit = "miles"
	NauticalMiles Unit = "nauticalmiles"
	Feet          Unit = "feet"
	Yards         Unit = "yards"
	Inches        Unit = "inches"
	Degrees       Unit = "degrees"
	Radians       Unit = "radians"
)

// factors scales an angular distance in radians at the earth's surface into
// each unit. Every linear entry derives from EarthRadius in meters.
var factors = map[Unit]float64{
	Kilometers:    EarthRadius / 1000,
	Meters:        EarthRadius,
	Centimeters:   EarthRadius * 100,
	Millimeters:   EarthRadius * 1000,
	Miles:         EarthRadius / 1609.344,
	NauticalMiles: EarthRadius / 1852,
	Feet:          EarthRadius * 3.28084,
	Yards:         EarthRadius * 1.0936,
	Inches:        EarthRadius * 39.37,
	Degrees:       360 / (2 * math.Pi),
	Radians:       1,
}

var aliases = map[string]Unit{
	"kilometres":  Kilometers,
	"metres":      Meters,
	"centimetres": Centimeters,
	"millimetres": Millimeters,
}

// ParseUnit resolves a unit name, case-insensitively, accepting British
// spellings.
func ParseUnit(s string) (Unit, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := aliases[name]; ok {
		return alias, nil
	}
	u := Unit(name)
	if !u.Valid() {
		return "", fmt.Errorf("geo: unknown unit %q", s)
	}
	return u, nil
}

// Valid reports whether u is one of the supported units.
func (u Unit) Valid() bool {
	_, ok := factors[u]
	return ok
}

// Distance returns the great-circle distance between two lon/lat points in
// the given unit. The central angle comes from s2. An unknown unit yields
// NaN, so validate with ParseUnit first.
func Distance(from, to orb.Point, unit Unit) float64 {
	factor, ok := factors[unit]
	if !ok {
		return math.NaN()
	}
	a := s2.PointFromLatLng(s2.LatLngFromDegrees(from[1], from[0]))
	b := s2.PointFromLatLng(s2.LatLngFromDegrees(to[1], to[0]))
	angle := s2.ChordAngleBetweenPoints(a, b).Angle()
	return angle.Radians() * factor
}
