package hexgrid

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/hexmesh/hexmesh/geo"
)

// planarMeasure keeps the planner arithmetic exact so expected values can be
// computed by hand.
func planarMeasure(from, to orb.Point, _ geo.Unit) float64 {
	return math.Hypot(to[0]-from[0], to[1]-from[1])
}

func unitBox() orb.Bound {
	return orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
}

func mustGrid(t *testing.T, b orb.Bound, side float64, opts Options) *Grid {
	t.Helper()
	g, err := New(b, side, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestPlanLayoutPlanar(t *testing.T) {
	g := mustGrid(t, unitBox(), 1, Options{Distance: planarMeasure})

	approx := func(name string, got, want float64) {
		t.Helper()
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	lay := g.lay
	approx("cellWidth", lay.cellWidth, 2)
	approx("cellHeight", lay.cellHeight, 2)
	approx("radius", lay.radius, 1)
	approx("hexWidth", lay.hexWidth, 2)
	approx("hexHeight", lay.hexHeight, math.Sqrt(3))
	approx("xInterval", lay.xInterval, 1.5)
	approx("yInterval", lay.yInterval, math.Sqrt(3))
	approx("xAdjust", lay.xAdjust, -1.25)
	approx("yAdjust", lay.yAdjust, (10-4*math.Sqrt(3))/2)
	if lay.xCount != 5 {
		t.Errorf("xCount = %d, want 5", lay.xCount)
	}
	if lay.yCount != 4 {
		t.Errorf("yCount = %d, want 4", lay.yCount)
	}
	if lay.rowOffset {
		t.Errorf("rowOffset = true, want false")
	}
}

func TestEmissionOrder(t *testing.T) {
	g := mustGrid(t, unitBox(), 1, Options{Distance: planarMeasure})

	var want []Cell
	for x := 0; x <= 5; x++ {
		first := 0
		if x%2 == 1 {
			first = 1
		}
		for y := first; y <= 4; y++ {
			want = append(want, Cell{Col: x, Row: y})
		}
	}

	var got []Cell
	g.EachCell(func(c Cell) { got = append(got, c) })
	if len(got) != len(want) {
		t.Fatalf("visited %d cells, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if n := g.CellCount(); n != len(want) {
		t.Errorf("CellCount = %d, want %d", n, len(want))
	}
}

func TestCollectionClosureAndCenters(t *testing.T) {
	g := mustGrid(t, unitBox(), 1, Options{Distance: planarMeasure})
	fc := g.Collection()
	if len(fc.Features) != 27 {
		t.Fatalf("features = %d, want 27", len(fc.Features))
	}

	var cells []Cell
	g.EachCell(func(c Cell) { cells = append(cells, c) })

	for i, f := range fc.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			t.Fatalf("feature %d geometry is %T, want orb.Polygon", i, f.Geometry)
		}
		ring := poly[0]
		if len(ring) != 7 {
			t.Fatalf("feature %d ring has %d positions, want 7", i, len(ring))
		}
		if ring[0] != ring[6] {
			t.Fatalf("feature %d ring not closed: %v vs %v", i, ring[0], ring[6])
		}
		// Vertex 0 sits one radius due east of the center.
		center := g.Center(cells[i])
		wantV0 := orb.Point{center[0] + g.lay.radius, center[1]}
		if math.Abs(ring[0][0]-wantV0[0]) > 1e-12 || math.Abs(ring[0][1]-wantV0[1]) > 1e-12 {
			t.Fatalf("feature %d vertex 0 = %v, want %v", i, ring[0], wantV0)
		}
	}
}

func TestTriangles(t *testing.T) {
	hexes := mustGrid(t, unitBox(), 1, Options{Distance: planarMeasure})
	tris := mustGrid(t, unitBox(), 1, Options{Distance: planarMeasure, Triangles: true})

	hexFC := hexes.Collection()
	triFC := tris.Collection()
	if len(triFC.Features) != 6*len(hexFC.Features) {
		t.Fatalf("triangle features = %d, want %d", len(triFC.Features), 6*len(hexFC.Features))
	}
	if n := tris.FeatureCount(); n != len(triFC.Features) {
		t.Errorf("FeatureCount = %d, want %d", n, len(triFC.Features))
	}

	for i, f := range triFC.Features {
		ring := f.Geometry.(orb.Polygon)[0]
		if len(ring) != 5 {
			t.Fatalf("triangle %d ring has %d positions, want 5", i, len(ring))
		}
		if ring[0] != ring[3] || ring[0] != ring[4] {
			t.Fatalf("triangle %d not closed on its center: %v %v %v", i, ring[0], ring[3], ring[4])
		}
	}

	// The six triangles of one cell share a common centroid.
	first := triFC.Features[0].Geometry.(orb.Polygon)[0][0]
	for i := 1; i < 6; i++ {
		if got := triFC.Features[i].Geometry.(orb.Polygon)[0][0]; got != first {
			t.Fatalf("triangle %d centroid %v differs from %v", i, got, first)
		}
	}
}

func TestCountMonotonicity(t *testing.T) {
	var prev int
	for _, side := range []float64{4, 2, 1, 0.5} {
		g := mustGrid(t, unitBox(), side, Options{Distance: planarMeasure})
		n := g.CellCount()
		if n < prev {
			t.Fatalf("side %v produced %d cells, fewer than %d at the coarser side", side, n, prev)
		}
		if got := len(g.Collection().Features); got != n {
			t.Fatalf("side %v: CellCount %d but %d features", side, n, got)
		}
		prev = n
	}
}

func TestIdempotence(t *testing.T) {
	bound := orb.Bound{Min: orb.Point{-96, 31}, Max: orb.Point{-84, 40}}
	opts := Options{Units: geo.Miles, Properties: map[string]any{"kind": "hex"}}

	first, err := Generate(bound, 50, opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := Generate(bound, 50, opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("identical inputs produced different output")
	}
}

func TestMilesBoundaryFixture(t *testing.T) {
	bound := orb.Bound{Min: orb.Point{-96, 31}, Max: orb.Point{-84, 40}}
	g := mustGrid(t, bound, 50, Options{Units: geo.Miles})

	fc := g.Collection()
	if len(fc.Features) == 0 {
		t.Fatal("50 mile cells over a 12x9 degree box came back empty")
	}
	if len(fc.Features) != 52 {
		t.Fatalf("features = %d, want 52", len(fc.Features))
	}

	// Every center must stay within the box padded by one cell's radii.
	padX := g.lay.radius
	padY := g.lay.cellHeight / 2
	g.EachCell(func(c Cell) {
		center := g.Center(c)
		if center[0] < bound.Min[0]-padX || center[0] > bound.Max[0]+padX ||
			center[1] < bound.Min[1]-padY || center[1] > bound.Max[1]+padY {
			t.Errorf("cell %+v center %v outside padded box", c, center)
		}
	})

	for i, f := range fc.Features {
		ring := f.Geometry.(orb.Polygon)[0]
		if ring[0] != ring[len(ring)-1] {
			t.Fatalf("feature %d ring not closed", i)
		}
	}
}

func TestDegenerateEmpty(t *testing.T) {
	t.Run("planar cell wider than box", func(t *testing.T) {
		g := mustGrid(t, unitBox(), 20, Options{Distance: planarMeasure})
		if n := len(g.Collection().Features); n != 0 {
			t.Fatalf("features = %d, want 0", n)
		}
		if n := g.CellCount(); n != 0 {
			t.Fatalf("CellCount = %d, want 0", n)
		}
	})
	t.Run("geodesic cell beyond box diagonal", func(t *testing.T) {
		bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
		fc, err := Generate(bound, 200, Options{Units: geo.Kilometers})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(fc.Features) != 0 {
			t.Fatalf("features = %d, want 0", len(fc.Features))
		}
	})
	t.Run("zero area box", func(t *testing.T) {
		bound := orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{5, 5}}
		fc, err := Generate(bound, 1, Options{})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(fc.Features) != 0 {
			t.Fatalf("features = %d, want 0", len(fc.Features))
		}
	})
}

func TestPropertiesClonedPerFeature(t *testing.T) {
	props := map[string]any{"zone": "a"}
	g := mustGrid(t, unitBox(), 2, Options{Distance: planarMeasure, Properties: props})
	fc := g.Collection()
	if len(fc.Features) < 2 {
		t.Fatalf("need at least 2 features, got %d", len(fc.Features))
	}

	fc.Features[0].Properties["zone"] = "b"
	if got := fc.Features[1].Properties["zone"]; got != "a" {
		t.Fatalf("sibling feature saw mutation: zone = %v", got)
	}
	if got := props["zone"]; got != "a" {
		t.Fatalf("input payload saw mutation: zone = %v", got)
	}
}

func TestEmptyPropertiesObject(t *testing.T) {
	g := mustGrid(t, unitBox(), 2, Options{Distance: planarMeasure})
	f := g.Collection().Features[0]
	if f.Properties == nil {
		t.Fatal("feature properties is nil, want empty object")
	}
	if len(f.Properties) != 0 {
		t.Fatalf("feature properties = %v, want empty", f.Properties)
	}
}

func TestRowOffsetSuppressesBottomRow(t *testing.T) {
	g := &Grid{lay: layout{xCount: 3, yCount: 2, rowOffset: true}}
	var visited []Cell
	g.EachCell(func(c Cell) {
		if c.Row == 0 {
			t.Errorf("row 0 cell %+v emitted with row offset set", c)
		}
		visited = append(visited, c)
	})
	if len(visited) != 8 {
		t.Fatalf("visited %d cells, want 8", len(visited))
	}
	if n := g.CellCount(); n != 8 {
		t.Fatalf("CellCount = %d, want 8", n)
	}
}
