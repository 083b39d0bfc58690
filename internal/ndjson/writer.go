// Package ndjson streams GeoJSON features as newline-delimited JSON.
package ndjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb/geojson"
)

// Writer appends one GeoJSON feature per line to a file.
type Writer struct {
	mu           sync.Mutex
	file         *os.File
	encoder      *json.Encoder
	path         string
	count        int64
	bytesWritten int64
}

// NewWriter creates a writer that outputs to the specified path, creating parent directories as needed.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create NDJSON directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create NDJSON file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)

	return &Writer{file: f, encoder: enc, path: path}, nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.file.Close()
	w.file = nil
	w.encoder = nil
	return err
}

// Path returns the destination file path.
func (w *Writer) Path() string {
	return w.path
}

// Count returns how many features have been written.
func (w *Writer) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Bytes returns the total bytes written so far (best-effort).
func (w *Writer) Bytes() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bytesWritten
}

// WriteFeature appends a feature as a single NDJSON line.
func (w *Writer) WriteFeature(f *geojson.Feature) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.encoder == nil {
		return fmt.Errorf("writer closed")
	}

	if err := w.encoder.Encode(f); err != nil {
		return fmt.Errorf("encode feature: %w", err)
	}

	w.count++

	if w.file != nil {
		if info, err := w.file.Stat(); err == nil {
			w.bytesWritten = info.Size()
		}
	}

	return nil
}

// WriteCollection streams every feature of fc as its own line.
func (w *Writer) WriteCollection(fc *geojson.FeatureCollection) error {
	for _, f := range fc.Features {
		if err := w.WriteFeature(f); err != nil {
			return err
		}
	}
	return nil
}
