package hexgrid

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestLocateRoundtrip(t *testing.T) {
	g := mustGrid(t, unitBox(), 1, Options{Distance: planarMeasure})

	g.EachCell(func(c Cell) {
		center := g.Center(c)
		got, ok := g.Locate(center)
		if !ok {
			t.Fatalf("Locate(center of %+v) found nothing", c)
		}
		if got != c {
			t.Fatalf("Locate(center of %+v) = %+v", c, got)
		}

		// A point partway toward a vertex still resolves to the same cell.
		inner := orb.Point{center[0] + 0.4*g.lay.radius, center[1] + 0.15*g.lay.cellHeight}
		got, ok = g.Locate(inner)
		if !ok || got != c {
			t.Fatalf("Locate(interior of %+v) = %+v, ok = %v", c, got, ok)
		}
	})
}

func TestLocateSharedEdge(t *testing.T) {
	g := mustGrid(t, unitBox(), 1, Options{Distance: planarMeasure})

	// Midpoint between two horizontally adjacent centers lies on a shared
	// edge and must land in one of the two cells, deterministically.
	a := g.Center(Cell{Col: 0, Row: 1})
	b := g.Center(Cell{Col: 1, Row: 1})
	mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}

	first, ok := g.Locate(mid)
	if !ok {
		t.Fatal("shared edge point fell through the grid")
	}
	for i := 0; i < 5; i++ {
		again, ok := g.Locate(mid)
		if !ok || again != first {
			t.Fatalf("shared edge point resolved to %+v then %+v", first, again)
		}
	}
}

func TestLocateOutside(t *testing.T) {
	g := mustGrid(t, unitBox(), 1, Options{Distance: planarMeasure})

	outside := []orb.Point{
		{0.05, 0.05},  // bottom-left margin inside the box
		{-5, -5},      // far outside the box
		{2.75, 0.67},  // footprint of the suppressed cell (1, 0)
		{10.5, 5},     // just past the east edge
	}
	for _, p := range outside {
		if c, ok := g.Locate(p); ok {
			t.Errorf("Locate(%v) = %+v, want no cell", p, c)
		}
	}
}

func TestLocateDegenerateGrid(t *testing.T) {
	g := mustGrid(t, unitBox(), 20, Options{Distance: planarMeasure})
	if c, ok := g.Locate(orb.Point{5, 5}); ok {
		t.Fatalf("Locate on an empty grid = %+v", c)
	}
}

func TestLocateNonFinitePoint(t *testing.T) {
	g := mustGrid(t, unitBox(), 1, Options{Distance: planarMeasure})
	for _, p := range []orb.Point{{math.NaN(), 5}, {5, math.NaN()}, {math.Inf(1), 5}} {
		if _, ok := g.Locate(p); ok {
			t.Errorf("Locate(%v) matched a cell", p)
		}
	}
}
