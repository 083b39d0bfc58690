package hexgrid

import "github.com/paulmach/orb"

// Cell addresses one hexagon of a planned grid by column and row index.
type Cell struct {
	Col int
	Row int
}

// EachCell visits every cell in emission order: columns ascending, rows
// ascending within a column. Odd columns sit half a hexagon lower than even
// ones, so their bottom row falls outside the box and is skipped; when the
// planner measured a row overflow the bottom row is skipped in every column.
func (g *Grid) EachCell(fn func(Cell)) {
	for x := 0; x <= g.lay.xCount; x++ {
		odd := x%2 == 1
		for y := 0; y <= g.lay.yCount; y++ {
			if y == 0 && (odd || g.lay.rowOffset) {
				continue
			}
			fn(Cell{Col: x, Row: y})
		}
	}
}

// CellCount returns the number of cells EachCell visits.
func (g *Grid) CellCount() int {
	cols := g.lay.xCount + 1
	rows := g.lay.yCount + 1
	if cols <= 0 || rows <= 0 {
		return 0
	}
	total := cols * rows
	if g.lay.rowOffset {
		total -= cols
	} else {
		total -= cols / 2
	}
	return total
}

// FeatureCount returns the number of features Collection will emit, six per
// cell in triangle mode.
func (g *Grid) FeatureCount() int {
	n := g.CellCount()
	if g.triangles {
		n *= 6
	}
	return n
}

// Center returns the cell's centroid in box coordinates.
func (g *Grid) Center(c Cell) orb.Point {
	x := float64(c.Col)*g.lay.xInterval + g.bound.Min[0] - g.lay.xAdjust
	y := float64(c.Row)*g.lay.yInterval + g.bound.Min[1] + g.lay.yAdjust
	if c.Col%2 == 1 {
		y -= g.lay.hexHeight / 2
	}
	return orb.Point{x, y}
}

// Polygon returns the cell's hexagon: six vertices at 60 degree steps around
// the center, the first repeated to close the ring.
func (g *Grid) Polygon(c Cell) orb.Polygon {
	center := g.Center(c)
	rx := g.lay.radius
	ry := g.lay.cellHeight / 2
	ring := make(orb.Ring, 0, 7)
	for i := 0; i < 6; i++ {
		ring = append(ring, orb.Point{
			center[0] + rx*g.cos[i],
			center[1] + ry*g.sin[i],
		})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// Triangles returns the six triangles composing the cell's hexagon, each a
// ring through the center and one hexagon edge, closed on the center.
func (g *Grid) Triangles(c Cell) []orb.Polygon {
	center := g.Center(c)
	rx := g.lay.radius
	ry := g.lay.cellHeight / 2
	tris := make([]orb.Polygon, 0, 6)
	for i := 0; i < 6; i++ {
		j := (i + 1) % 6
		ring := orb.Ring{
			center,
			{center[0] + rx*g.cos[i], center[1] + ry*g.sin[i]},
			{center[0] + rx*g.cos[j], center[1] + ry*g.sin[j]},
			center,
		}
		ring = append(ring, ring[0])
		tris = append(tris, orb.Polygon{ring})
	}
	return tris
}
