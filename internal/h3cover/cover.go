// Package h3cover maps bounding boxes onto H3 cells for comparison against
// hexagonal tessellations.
package h3cover

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	h3 "github.com/uber/h3-go/v4"
)

// Options configure a covering run.
type Options struct {
	// Resolution is the H3 resolution, 0 through 15.
	Resolution int
	// Compact merges complete child sets into their parent cells.
	Compact bool
}

// Cover returns the H3 cells overlapping the bounding box, one polygon
// feature per cell, sorted by index for deterministic output.
func Cover(b orb.Bound, opts Options) (*geojson.FeatureCollection, error) {
	if opts.Resolution < 0 || opts.Resolution > 15 {
		return nil, fmt.Errorf("h3 resolution %d out of range 0..15", opts.Resolution)
	}

	// v4 wants degrees, ring left open.
	outer := h3.GeoLoop{
		{Lat: b.Min[1], Lng: b.Min[0]},
		{Lat: b.Min[1], Lng: b.Max[0]},
		{Lat: b.Max[1], Lng: b.Max[0]},
		{Lat: b.Max[1], Lng: b.Min[0]},
	}

	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, opts.Resolution)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	if opts.Compact {
		cells, err = h3.CompactCells(cells)
		if err != nil {
			return nil, fmt.Errorf("compact cells: %w", err)
		}
	}

	cells = sortCells(cells)

	fc := geojson.NewFeatureCollection()
	for _, cell := range cells {
		f, err := CellFeature(cell)
		if err != nil {
			return nil, err
		}
		fc.Append(f)
	}
	return fc, nil
}

// CellFeature converts one H3 cell into a polygon feature tagged with its
// string index and resolution.
func CellFeature(cell h3.Cell) (*geojson.Feature, error) {
	poly, err := polygonFromCell(cell)
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(poly)
	f.Properties = geojson.Properties{
		"h3":         cell.String(),
		"resolution": cell.Resolution(),
	}
	return f, nil
}

func polygonFromCell(cell h3.Cell) (orb.Polygon, error) {
	if !cell.IsValid() {
		return nil, fmt.Errorf("invalid H3 cell index")
	}

	boundary, err := cell.Boundary()
	if err != nil {
		return nil, fmt.Errorf("compute boundary: %w", err)
	}
	if len(boundary) == 0 {
		return nil, fmt.Errorf("empty boundary for cell %s", cell.String())
	}

	ring := make(orb.Ring, 0, len(boundary)+1)
	for _, vertex := range boundary {
		ring = append(ring, orb.Point{vertex.Lng, vertex.Lat})
	}

	if !ringClosed(ring) {
		ring = append(ring, ring[0])
	}

	return orb.Polygon{ring}, nil
}

func ringClosed(ring orb.Ring) bool {
	if len(ring) < 2 {
		return false
	}
	first := ring[0]
	last := ring[len(ring)-1]
	return first[0] == last[0] && first[1] == last[1]
}

func sortCells(cells []h3.Cell) []h3.Cell {
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
	out := cells[:0]
	var prev h3.Cell
	for i, c := range cells {
		if i > 0 && c == prev {
			continue
		}
		out = append(out, c)
		prev = c
	}
	return out
}
