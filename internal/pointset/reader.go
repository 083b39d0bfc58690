// Package pointset streams longitude/latitude records from Parquet files.
package pointset

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/paulmach/orb"
)

// ReaderOptions controls how Parquet rows are streamed.
type ReaderOptions struct {
	// BatchSize controls how many rows are fetched per request.
	BatchSize int
	// Parallel controls the number of goroutines spawned by parquet-go when decoding row groups.
	Parallel int
}

// Row is a decoded point record. Err is set when the row carries unusable
// coordinates; such rows still stream through so callers can account for them.
type Row struct {
	RowNumber  int64
	Point      orb.Point
	Properties map[string]any
	Err        error
}

// Reader streams point rows from a Parquet file.
type Reader struct {
	opts      ReaderOptions
	filePath  string
	reader    *parquet.Reader
	totalRows int64
	lonColumn string
	latColumn string

	mu     sync.Mutex
	buffer []*Row
	cursor int
	read   int64
}

// ErrNoCoordinates is returned when the Parquet schema has no recognizable
// longitude/latitude column pair.
var ErrNoCoordinates = errors.New("parquet file missing longitude/latitude columns")

var (
	lonNames = []string{"lon", "lng", "long", "longitude", "x"}
	latNames = []string{"lat", "latitude", "y"}
)

// NewReader opens a Parquet file and prepares it for streaming rows.
func NewReader(path string, opts ReaderOptions) (*Reader, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 4096
	}
	if opts.Parallel <= 0 {
		opts.Parallel = runtime.NumCPU()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	reader := parquet.NewReader(file)

	lon, lat, err := coordinateColumns(reader.Schema())
	if err != nil {
		reader.Close()
		file.Close()
		return nil, err
	}

	return &Reader{
		opts:      opts,
		filePath:  filepath.Clean(path),
		reader:    reader,
		totalRows: reader.NumRows(),
		lonColumn: lon,
		latColumn: lat,
	}, nil
}

// Close releases Parquet reader resources.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}
	r.buffer = nil
	return nil
}

// Next returns the next decoded row. It returns io.EOF when all rows are consumed.
func (r *Reader) Next() (*Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reader == nil {
		return nil, fmt.Errorf("reader closed")
	}

	if r.cursor >= len(r.buffer) {
		if err := r.fillBuffer(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
	}

	if r.cursor >= len(r.buffer) {
		return nil, io.EOF
	}

	row := r.buffer[r.cursor]
	r.cursor++
	return row, nil
}

// TotalRows returns the number of rows reported by the Parquet footer.
func (r *Reader) TotalRows() int64 {
	return r.totalRows
}

// LonColumn returns the detected longitude column name.
func (r *Reader) LonColumn() string { return r.lonColumn }

// LatColumn returns the detected latitude column name.
func (r *Reader) LatColumn() string { return r.latColumn }

func (r *Reader) fillBuffer() error {
	if r.read >= r.totalRows {
		return io.EOF
	}

	remaining := int(r.totalRows - r.read)
	toRead := r.opts.BatchSize
	if toRead > remaining {
		toRead = remaining
	}

	rows := make([]parquet.Row, toRead)
	n, err := r.reader.ReadRows(rows)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read parquet rows: %w", err)
	}
	if n == 0 {
		return io.EOF
	}

	r.buffer = r.buffer[:0]
	r.cursor = 0

	fields := r.reader.Schema().Fields()

	for i := 0; i < n; i++ {
		rowNumber := r.read + 1

		var lonRaw, latRaw any
		props := make(map[string]any, len(fields))
		for j, value := range rows[i] {
			if j >= len(fields) {
				break
			}
			name := fields[j].Name()
			decoded := valueToAny(value)
			switch name {
			case r.lonColumn:
				lonRaw = decoded
			case r.latColumn:
				latRaw = decoded
			default:
				props[name] = decoded
			}
		}

		lon, lonOK := coordFloat(lonRaw)
		lat, latOK := coordFloat(latRaw)

		row := &Row{
			RowNumber:  rowNumber,
			Properties: props,
		}
		switch {
		case !lonOK || !latOK:
			row.Err = fmt.Errorf("row %d: non-numeric coordinates", rowNumber)
		case !(lon >= -180 && lon <= 180) || !(lat >= -90 && lat <= 90):
			row.Err = fmt.Errorf("row %d: coordinates out of range (%v, %v)", rowNumber, lon, lat)
		default:
			row.Point = orb.Point{lon, lat}
		}

		r.buffer = append(r.buffer, row)
		r.read++
	}

	return nil
}

func coordinateColumns(schema *parquet.Schema) (string, string, error) {
	var lon, lat string
	for _, f := range schema.Fields() {
		name := f.Name()
		if lon == "" && matchesColumn(name, lonNames) {
			lon = name
			continue
		}
		if lat == "" && matchesColumn(name, latNames) {
			lat = name
		}
	}
	if lon == "" || lat == "" {
		return "", "", ErrNoCoordinates
	}
	return lon, lat, nil
}

func matchesColumn(name string, candidates []string) bool {
	lname := strings.ToLower(name)
	for _, candidate := range candidates {
		if lname == candidate {
			return true
		}
	}
	return false
}

func valueToAny(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

func coordFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}
