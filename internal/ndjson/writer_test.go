package ndjson

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func hexFeature(id float64) *geojson.Feature {
	ring := orb.Ring{{0, 0}, {1, 0}, {1.5, 0.9}, {1, 1.8}, {0, 1.8}, {-0.5, 0.9}, {0, 0}}
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties = geojson.Properties{"cell": id}
	return f
}

func TestWriteFeatureLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "grid.ndjson")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := w.WriteFeature(hexFeature(float64(i))); err != nil {
			t.Fatalf("WriteFeature: %v", err)
		}
	}
	if w.Count() != 3 {
		t.Errorf("Count = %d, want 3", w.Count())
	}
	if w.Bytes() <= 0 {
		t.Error("Bytes should be positive after writes")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("line count = %d, want 3", len(lines))
	}
	for i, line := range lines {
		f, err := geojson.UnmarshalFeature(line)
		if err != nil {
			t.Fatalf("line %d is not a feature: %v", i, err)
		}
		if got := f.Properties.MustFloat64("cell"); got != float64(i) {
			t.Errorf("line %d cell = %v, want %d", i, got, i)
		}
		if _, ok := f.Geometry.(orb.Polygon); !ok {
			t.Errorf("line %d geometry = %T, want polygon", i, f.Geometry)
		}
	}
}

func TestWriteCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.ndjson")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	fc := geojson.NewFeatureCollection()
	fc.Append(hexFeature(1))
	fc.Append(hexFeature(2))

	if err := w.WriteCollection(fc); err != nil {
		t.Fatalf("WriteCollection: %v", err)
	}
	if w.Count() != 2 {
		t.Errorf("Count = %d, want 2", w.Count())
	}
}

func TestWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.ndjson")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
	if err := w.WriteFeature(hexFeature(0)); err == nil {
		t.Fatal("expected error writing to closed writer")
	}
}
