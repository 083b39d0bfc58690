package props

import (
	"math"
	"testing"
)

func TestFilterKeepsAllByDefault(t *testing.T) {
	f := NewFilter(nil, nil)
	in := map[string]any{"count": int64(4), "mean": 2.5}
	out := f.Apply(in)
	if len(out) != 2 {
		t.Fatalf("kept %d keys, want 2", len(out))
	}
}

func TestFilterInclude(t *testing.T) {
	f := NewFilter([]string{"count", "mean", "count", " "}, nil)
	in := map[string]any{"count": int64(4), "mean": 2.5, "sum": 10.0}
	out := f.Apply(in)
	if len(out) != 2 {
		t.Fatalf("kept %d keys, want 2: %v", len(out), out)
	}
	if _, ok := out["sum"]; ok {
		t.Error("sum should have been excluded")
	}
	keys := f.Keys()
	if len(keys) != 2 || keys[0] != "count" || keys[1] != "mean" {
		t.Errorf("Keys = %v, want [count mean] in CLI order", keys)
	}
}

func TestFilterDropGlobs(t *testing.T) {
	f := NewFilter(nil, []string{"min*", "max"})
	in := map[string]any{"count": int64(1), "min": 0.0, "max": 9.0, "mean": 4.5}
	out := f.Apply(in)
	if _, ok := out["min"]; ok {
		t.Error("min should match drop glob")
	}
	if _, ok := out["max"]; ok {
		t.Error("max should have been dropped")
	}
	if _, ok := out["count"]; !ok {
		t.Error("count should survive")
	}
}

func TestFilterDropBeatsInclude(t *testing.T) {
	f := NewFilter([]string{"count", "sum"}, []string{"sum"})
	out := f.Apply(map[string]any{"count": int64(1), "sum": 3.0})
	if _, ok := out["sum"]; ok {
		t.Error("drop pattern should override include")
	}
}

func TestFilterNilAndEmpty(t *testing.T) {
	f := NewFilter(nil, nil)
	if out := f.Apply(nil); out != nil {
		t.Errorf("Apply(nil) = %v, want nil", out)
	}
	if out := f.Apply(map[string]any{}); out == nil || len(out) != 0 {
		t.Errorf("Apply(empty) = %v, want empty map", out)
	}
}

func TestParseQuantizer(t *testing.T) {
	q, err := Parse("float=0.01, int=1; mean=0.5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.FloatStep != 0.01 {
		t.Errorf("FloatStep = %v", q.FloatStep)
	}
	if q.IntStep != 1 {
		t.Errorf("IntStep = %v", q.IntStep)
	}
	if q.FieldSteps["mean"] != 0.5 {
		t.Errorf("FieldSteps = %v", q.FieldSteps)
	}
}

func TestParseQuantizerErrors(t *testing.T) {
	for _, spec := range []string{"float", "float=", "=0.1", "float=abc", "float=-1"} {
		if _, err := Parse(spec); err == nil {
			t.Errorf("Parse(%q) should fail", spec)
		}
	}
}

func TestParseQuantizerEmpty(t *testing.T) {
	q, err := Parse("   ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.FloatStep != 0 || q.IntStep != 0 || len(q.FieldSteps) != 0 {
		t.Errorf("empty spec should be a no-op quantizer: %+v", q)
	}
}

func TestQuantizeApply(t *testing.T) {
	q := Quantizer{FloatStep: 0.25, IntStep: 10, FieldSteps: map[string]float64{"mean": 0.5}}
	props := map[string]any{
		"mean":  2.72,
		"sum":   10.13,
		"count": int64(47),
		"label": "zone-a",
		"empty": nil,
	}
	res := q.Apply(props)

	if got := props["mean"].(float64); got != 2.5 {
		t.Errorf("mean = %v, want 2.5 via field override", got)
	}
	if got := props["sum"].(float64); got != 10.25 {
		t.Errorf("sum = %v, want 10.25", got)
	}
	if got := props["count"].(int64); got != 50 {
		t.Errorf("count = %v, want 50", got)
	}
	if props["label"] != "zone-a" {
		t.Errorf("string property mutated: %v", props["label"])
	}
	if res.Changes != 3 {
		t.Errorf("Changes = %d, want 3", res.Changes)
	}

	wantErr := math.Abs(2.5-2.72) + math.Abs(10.25-10.13) + 3
	if math.Abs(res.TotalAbsError-wantErr) > 1e-9 {
		t.Errorf("TotalAbsError = %v, want %v", res.TotalAbsError, wantErr)
	}
	if res.FieldErrors["count"] != 3 {
		t.Errorf("FieldErrors[count] = %v, want 3", res.FieldErrors["count"])
	}
}

func TestQuantizeNoChange(t *testing.T) {
	q := Quantizer{FloatStep: 0.5}
	props := map[string]any{"mean": 2.5}
	res := q.Apply(props)
	if res.Changes != 0 {
		t.Errorf("Changes = %d, want 0", res.Changes)
	}
	if res.FieldErrors != nil {
		t.Errorf("FieldErrors = %v, want nil when nothing changed", res.FieldErrors)
	}
}

func TestQuantizeZeroStepsLeaveValues(t *testing.T) {
	q := Quantizer{}
	props := map[string]any{"mean": 2.72, "count": int64(47)}
	res := q.Apply(props)
	if res.Changes != 0 || props["mean"] != 2.72 || props["count"] != int64(47) {
		t.Errorf("no-op quantizer mutated props: %v (changes=%d)", props, res.Changes)
	}
}
