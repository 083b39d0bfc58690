package hexgrid

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/hexmesh/hexmesh/geo"
)

// layout holds the derived grid geometry. Everything is expressed in box
// coordinate units (degrees for lon/lat boxes) and fixed once planned.
type layout struct {
	cellWidth  float64 // width of one hexagon's bounding rectangle
	cellHeight float64 // height of one hexagon's bounding rectangle
	radius     float64 // circumradius, cellWidth/2
	hexWidth   float64
	hexHeight  float64
	xInterval  float64 // horizontal stride between column centers
	yInterval  float64 // vertical stride between row centers
	xCount     int     // highest column index, iteration runs 0..xCount inclusive
	yCount     int     // highest row index, iteration runs 0..yCount inclusive
	xAdjust    float64 // horizontal centering shift applied to every center
	yAdjust    float64 // vertical centering shift applied to every center
	rowOffset  bool    // rows overflow the box bottom, row 0 suppressed everywhere
}

// planLayout derives the grid geometry for a box and a physical cell side.
// The side is converted to box units by measuring across the box center once
// per axis; on geodesic units that center sampling is the documented
// behavior, not an approximation to correct.
func planLayout(b orb.Bound, cellSide float64, unit geo.Unit, measure DistanceFunc) layout {
	west, south := b.Min[0], b.Min[1]
	east, north := b.Max[0], b.Max[1]
	centerX := (west + east) / 2
	centerY := (south + north) / 2

	xFraction := cellSide * 2 / measure(orb.Point{west, centerY}, orb.Point{east, centerY}, unit)
	cellWidth := xFraction * (east - west)
	yFraction := cellSide * 2 / measure(orb.Point{centerX, south}, orb.Point{centerX, north}, unit)
	cellHeight := yFraction * (north - south)

	radius := cellWidth / 2
	hexWidth := radius * 2
	hexHeight := math.Sqrt(3) / 2 * cellHeight

	boxWidth := east - west
	boxHeight := north - south

	xInterval := 3.0 / 4.0 * hexWidth
	yInterval := hexHeight

	// The last column's rightmost vertex must stay inside the box given
	// the three-quarter-width column stride.
	xSpan := (boxWidth - hexWidth) / (hexWidth - radius/2)
	xCount := floorCount(xSpan)
	xAdjust := (float64(xCount)*xInterval-radius/2-boxWidth)/2 - radius/2 + xInterval/2

	yCount := floorCount((boxHeight - hexHeight) / hexHeight)
	yAdjust := (boxHeight - float64(yCount)*hexHeight) / 2

	// When the stacked rows overflow the box bottom by more than half a
	// hexagon, drop the grid a quarter height and suppress row 0 for every
	// column, not just the shifted odd ones.
	rowOffset := float64(yCount)*hexHeight-boxHeight > hexHeight/2
	if rowOffset {
		yAdjust -= hexHeight / 4
	}

	return layout{
		cellWidth:  cellWidth,
		cellHeight: cellHeight,
		radius:     radius,
		hexWidth:   hexWidth,
		hexHeight:  hexHeight,
		xInterval:  xInterval,
		yInterval:  yInterval,
		xCount:     xCount,
		yCount:     yCount,
		xAdjust:    xAdjust,
		yAdjust:    yAdjust,
		rowOffset:  rowOffset,
	}
}

// floorCount floors a span to a cell count. Degenerate boxes measure NaN or
// infinite spans; those become -1 so the inclusive iteration runs zero times
// instead of hitting the platform-defined float to int conversion. Finite
// spans beyond int32 are clamped.
func floorCount(v float64) int {
	f := math.Floor(v)
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt32:
		return -1
	case f > math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}
