package hexgrid

import (
	"math"

	"github.com/paulmach/orb"
)

// locateSlack absorbs floating point noise on cell edges so boundary points
// resolve to a neighboring cell instead of falling through the grid.
const locateSlack = 1e-9

// Locate returns the cell whose hexagon contains p. Points in the margins
// outside every cell, including suppressed bottom rows, return ok == false.
// Shared edges resolve deterministically to the first matching candidate.
func (g *Grid) Locate(p orb.Point) (Cell, bool) {
	if g.lay.xCount < 0 || g.lay.yCount < 0 {
		return Cell{}, false
	}
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		return Cell{}, false
	}
	rx := g.lay.radius
	ry := g.lay.cellHeight / 2
	if !(rx > 0) || !(ry > 0) {
		return Cell{}, false
	}

	colGuess := (p[0] - g.bound.Min[0] + g.lay.xAdjust) / g.lay.xInterval
	for _, col := range candidates(colGuess, g.lay.xCount) {
		base := g.bound.Min[1] + g.lay.yAdjust
		if col%2 == 1 {
			base -= g.lay.hexHeight / 2
		}
		rowGuess := (p[1] - base) / g.lay.yInterval
		for _, row := range candidates(rowGuess, g.lay.yCount) {
			if row == 0 && (col%2 == 1 || g.lay.rowOffset) {
				continue
			}
			c := Cell{Col: col, Row: row}
			center := g.Center(c)
			if insideHex((p[0]-center[0])/rx, (p[1]-center[1])/ry) {
				return c, true
			}
		}
	}
	return Cell{}, false
}

// candidates returns the nearest index and its neighbors, clamped to
// 0..maxIdx. A point can sit closer to the next column's center than to the
// center of the hexagon containing it, so one candidate is never enough.
func candidates(guess float64, maxIdx int) []int {
	nearest := int(math.Round(guess))
	out := make([]int, 0, 3)
	for _, idx := range [3]int{nearest, nearest - 1, nearest + 1} {
		if idx < 0 || idx > maxIdx {
			continue
		}
		out = append(out, idx)
	}
	return out
}

// insideHex tests a point against the unit flat-topped hexagon, coordinates
// already normalized by the cell radii: flat edges cap |v| at sqrt(3)/2 and
// the slanted edges satisfy |u| + |v|/sqrt(3) <= 1.
func insideHex(u, v float64) bool {
	if math.Abs(v) > math.Sqrt(3)/2+locateSlack {
		return false
	}
	return math.Abs(u)+math.Abs(v)/math.Sqrt(3) <= 1+locateSlack
}
