package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestBuildEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := Build(Config{Level: "info", Component: "serve"}, &buf)
	log.Info().Str("route", "/grid").Msg("request")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "request" {
		t.Errorf("msg = %v, want %q", rec["msg"], "request")
	}
	if rec["level"] != "info" {
		t.Errorf("level = %v, want %q", rec["level"], "info")
	}
	if rec["component"] != "serve" {
		t.Errorf("component = %v, want %q", rec["component"], "serve")
	}
	if rec["route"] != "/grid" {
		t.Errorf("route = %v, want %q", rec["route"], "/grid")
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Error("timestamp field missing")
	}
}

func TestBuildLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := Build(Config{Level: "warn"}, &buf)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line emitted at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestFromContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := Build(Config{Level: "info"}, &buf)

	ctx := WithRequestID(context.Background(), "abc123")
	child := FromContext(ctx, &log)
	child.Info().Msg("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["request_id"] != "abc123" {
		t.Errorf("request_id = %v, want abc123", rec["request_id"])
	}
}

func TestFromContextNilParent(t *testing.T) {
	child := FromContext(context.Background(), nil)
	// Must not panic and must be usable.
	child.Info().Msg("discarded")
}

func TestNewIDShape(t *testing.T) {
	id := NewID()
	if len(id) != 16 {
		t.Fatalf("id length = %d, want 16 hex chars", len(id))
	}
	other := NewID()
	if id == other {
		t.Fatalf("two ids collided: %s", id)
	}
}
