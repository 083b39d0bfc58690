// Package hexgrid tessellates a geographic bounding box into flat-topped
// hexagons arranged on an odd-q offset grid.
//
// A grid is planned from a bounding box and a physical cell side length equal
// to the hexagon circumradius. The side length is converted into box
// coordinate units by measuring the distance across the box center once per
// axis, so one planned layout describes every cell. Cells render as GeoJSON
// polygon features in column-major order, rows ascending within each column.
package hexgrid

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hexmesh/hexmesh/geo"
)

// DistanceFunc measures the distance between two lon/lat points in the given
// unit. The planner calls it twice per grid, once across the box's
// horizontal center and once across its vertical center.
type DistanceFunc func(from, to orb.Point, unit geo.Unit) float64

// Options control grid generation.
type Options struct {
	// Units is the unit of the cell side length. Empty means kilometers.
	Units geo.Unit

	// Properties is attached to every emitted feature. Each feature
	// receives its own top-level copy, so mutating one feature's
	// properties leaves the rest untouched. Nested values stay shared.
	Properties map[string]any

	// Triangles emits the six triangles composing each hexagon instead of
	// the hexagon itself.
	Triangles bool

	// Distance overrides the geodesic measure. Nil means geo.Distance.
	Distance DistanceFunc
}

// Grid is a planned hexagon layout over a bounding box. All derived geometry
// is computed once in New and never mutated afterwards, so a Grid is safe to
// share across goroutines.
type Grid struct {
	bound     orb.Bound
	cellSide  float64
	unit      geo.Unit
	props     map[string]any
	triangles bool

	lay layout

	// vertex angle tables for the six 60 degree steps
	cos [6]float64
	sin [6]float64
}

// New plans a grid over bound with cells of side cellSide, measured in
// opts.Units. Degenerate but well-formed inputs (a zero-area box, a cell
// larger than the box) plan a grid with nothing to emit; they are not
// errors.
func New(bound orb.Bound, cellSide float64, opts Options) (*Grid, error) {
	if err := checkBound(bound); err != nil {
		return nil, err
	}
	if math.IsNaN(cellSide) || math.IsInf(cellSide, 0) || cellSide <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrCellSide, cellSide)
	}
	unit := opts.Units
	if unit == "" {
		unit = geo.Kilometers
	}
	if !unit.Valid() {
		return nil, fmt.Errorf("%w %q", ErrUnits, string(unit))
	}
	measure := opts.Distance
	if measure == nil {
		measure = geo.Distance
	}

	g := &Grid{
		bound:     bound,
		cellSide:  cellSide,
		unit:      unit,
		props:     opts.Properties,
		triangles: opts.Triangles,
		lay:       planLayout(bound, cellSide, unit, measure),
	}
	for i := 0; i < 6; i++ {
		angle := float64(i) * math.Pi / 3
		g.cos[i] = math.Cos(angle)
		g.sin[i] = math.Sin(angle)
	}
	return g, nil
}

// Generate plans a grid and renders it in one step.
func Generate(bound orb.Bound, cellSide float64, opts Options) (*geojson.FeatureCollection, error) {
	g, err := New(bound, cellSide, opts)
	if err != nil {
		return nil, err
	}
	return g.Collection(), nil
}

// Bound returns the bounding box the grid was planned over.
func (g *Grid) Bound() orb.Bound { return g.bound }

// Collection renders every cell into a feature collection. Hexagon rings
// carry seven positions, the six vertices plus the closing repeat; triangle
// rings carry five.
func (g *Grid) Collection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	g.EachCell(func(c Cell) {
		if g.triangles {
			for _, tri := range g.Triangles(c) {
				fc.Append(g.feature(tri))
			}
			return
		}
		fc.Append(g.feature(g.Polygon(c)))
	})
	return fc
}

func (g *Grid) feature(poly orb.Polygon) *geojson.Feature {
	f := geojson.NewFeature(poly)
	if len(g.props) > 0 {
		f.Properties = cloneProperties(g.props)
	}
	return f
}

// cloneProperties copies the top level of the shared payload so features do
// not alias each other's property maps.
func cloneProperties(src map[string]any) geojson.Properties {
	out := make(geojson.Properties, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
