// Package binner aggregates point datasets into hexagonal grid cells.
package binner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/hexmesh/hexmesh/geo"
	"github.com/hexmesh/hexmesh/hexgrid"
	"github.com/hexmesh/hexmesh/internal/ndjson"
	"github.com/hexmesh/hexmesh/internal/pointset"
	"github.com/hexmesh/hexmesh/internal/props"
	"github.com/hexmesh/hexmesh/internal/report"
)

// Options describe a bin invocation.
type Options struct {
	InputPath       string
	OutputPath      string
	Format          string // "geojson" (default) or "ndjson"
	BBox            []float64
	CellSide        float64
	Units           string
	ValueColumn     string
	KeepEmpty       bool
	PropertyInclude []string
	PropertyDrop    []string
	QuantizeSpec    string
	Threads         int
	ReportPath      string
}

// Result contains the report produced by the run.
type Result struct {
	Report *report.Report
}

// Run executes the Parquet → grid → GeoJSON pipeline according to Options.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	format, err := resolveFormat(opts)
	if err != nil {
		return nil, err
	}

	bound, err := hexgrid.BoundFrom(opts.BBox)
	if err != nil {
		return nil, err
	}
	grid, err := hexgrid.New(bound, opts.CellSide, hexgrid.Options{Units: geo.Unit(opts.Units)})
	if err != nil {
		return nil, err
	}

	absInput, err := filepath.Abs(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("resolve input path: %w", err)
	}
	absOutput, err := filepath.Abs(opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absOutput), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	rep := &report.Report{
		Config: report.Config{
			InputPath:    absInput,
			OutputPath:   absOutput,
			BBox:         formatBBox(opts.BBox),
			CellSide:     opts.CellSide,
			Units:        string(resolveUnits(opts.Units)),
			ValueColumn:  opts.ValueColumn,
			KeepEmpty:    opts.KeepEmpty,
			QuantizeSpec: opts.QuantizeSpec,
			PropsKeep:    append([]string(nil), opts.PropertyInclude...),
			PropsDrop:    append([]string(nil), opts.PropertyDrop...),
			Threads:      threads,
		},
		Metrics: report.Metrics{
			StartedAt: time.Now(),
			GridCells: grid.CellCount(),
		},
	}

	quantizer, err := props.Parse(opts.QuantizeSpec)
	if err != nil {
		return nil, fmt.Errorf("parse quantize spec: %w", err)
	}
	filter := props.NewFilter(opts.PropertyInclude, opts.PropertyDrop)

	reader, err := pointset.NewReader(absInput, pointset.ReaderOptions{BatchSize: 4096, Parallel: threads})
	if err != nil {
		return nil, fmt.Errorf("open parquet reader: %w", err)
	}
	defer reader.Close()

	cfg := processConfig{
		Grid:        grid,
		ValueColumn: opts.ValueColumn,
		KeepEmpty:   opts.KeepEmpty,
		Threads:     threads,
		Filter:      filter,
		Quantizer:   quantizer,
		Report:      rep,
	}

	bins, err := binRows(ctx, reader, cfg)
	if err != nil {
		return nil, err
	}

	rep.Metrics.OccupiedCells = int64(len(bins))
	for _, acc := range bins {
		rep.ObserveCount(acc.count)
	}

	switch format {
	case "ndjson":
		writer, err := ndjson.NewWriter(absOutput)
		if err != nil {
			return nil, err
		}
		if err := emit(grid, bins, cfg, writer.WriteFeature); err != nil {
			writer.Close()
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("close NDJSON writer: %w", err)
		}
	default:
		fc := geojson.NewFeatureCollection()
		if err := emit(grid, bins, cfg, func(f *geojson.Feature) error {
			fc.Append(f)
			return nil
		}); err != nil {
			return nil, err
		}
		buf, err := json.Marshal(fc)
		if err != nil {
			return nil, fmt.Errorf("marshal feature collection: %w", err)
		}
		if err := os.WriteFile(absOutput, buf, 0o644); err != nil {
			return nil, fmt.Errorf("write output: %w", err)
		}
	}

	if info, statErr := os.Stat(absOutput); statErr == nil {
		rep.Metrics.OutputSize = info.Size()
	}

	rep.Metrics.FinishedAt = time.Now()
	rep.Metrics.Duration = time.Since(rep.Metrics.StartedAt)

	if opts.ReportPath != "" {
		if err := rep.WriteHTML(opts.ReportPath); err != nil {
			return nil, err
		}
	}

	return &Result{Report: rep}, nil
}

func validateOptions(opts Options) error {
	if opts.InputPath == "" {
		return fmt.Errorf("input path is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if _, err := os.Stat(opts.InputPath); err != nil {
		return fmt.Errorf("input file: %w", err)
	}
	return nil
}

func resolveFormat(opts Options) (string, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		if strings.HasSuffix(opts.OutputPath, ".ndjson") {
			return "ndjson", nil
		}
		return "geojson", nil
	}
	if format != "geojson" && format != "ndjson" {
		return "", fmt.Errorf("unknown output format %q", opts.Format)
	}
	return format, nil
}

func resolveUnits(units string) geo.Unit {
	if units == "" {
		return geo.Kilometers
	}
	return geo.Unit(units)
}

func formatBBox(vals []float64) string {
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		parts = append(parts, fmt.Sprintf("%g", v))
	}
	return strings.Join(parts, ",")
}

type processConfig struct {
	Grid        *hexgrid.Grid
	ValueColumn string
	KeepEmpty   bool
	Threads     int
	Filter      *props.Filter
	Quantizer   props.Quantizer
	Report      *report.Report
}

type accumulator struct {
	count      int64
	valueCount int64
	sum        float64
	min        float64
	max        float64
}

func (a *accumulator) observe(v float64, ok bool) {
	a.count++
	if !ok {
		return
	}
	if a.valueCount == 0 {
		a.min, a.max = v, v
	} else {
		if v < a.min {
			a.min = v
		}
		if v > a.max {
			a.max = v
		}
	}
	a.valueCount++
	a.sum += v
}

type locateResult struct {
	RowNumber int64
	Cell      hexgrid.Cell
	Located   bool
	Value     float64
	HasValue  bool
	Invalid   bool
	Detail    string
	Err       error
}

type source interface {
	Next() (*pointset.Row, error)
}

// binRows streams rows through a worker pool and folds them into per-cell
// accumulators in row order, so float sums are reproducible.
func binRows(ctx context.Context, src source, cfg processConfig) (map[hexgrid.Cell]*accumulator, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *pointset.Row)
	results := make(chan locateResult, cfg.Threads*2)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerLoop(ctx, jobs, results, cfg)
		}()
	}

	go func() {
		defer close(jobs)
		for {
			row, err := src.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case results <- locateResult{Err: fmt.Errorf("read points: %w", err)}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case <-ctx.Done():
				return
			case jobs <- row:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	const invalidSampleLimit = 10

	bins := make(map[hexgrid.Cell]*accumulator)
	expected := int64(1)
	pending := make(map[int64]locateResult)
	var valueMissing int64

	for res := range results {
		if res.Err != nil {
			cancel()
			wg.Wait()
			return nil, res.Err
		}

		pending[res.RowNumber] = res

		for {
			lr, ok := pending[expected]
			if !ok {
				break
			}
			delete(pending, expected)
			expected++

			cfg.Report.Metrics.TotalRows++

			switch {
			case lr.Invalid:
				cfg.Report.Metrics.InvalidRows++
				if len(cfg.Report.Metrics.InvalidSamples) < invalidSampleLimit {
					cfg.Report.AddInvalidSample(report.InvalidSample{RowNumber: lr.RowNumber, Message: lr.Detail})
				}
			case !lr.Located:
				cfg.Report.Metrics.OutsidePoints++
			default:
				acc := bins[lr.Cell]
				if acc == nil {
					acc = &accumulator{}
					bins[lr.Cell] = acc
				}
				acc.observe(lr.Value, lr.HasValue)
				cfg.Report.Metrics.BinnedPoints++
				if cfg.ValueColumn != "" && !lr.HasValue {
					valueMissing++
				}
			}
		}
	}

	cancel()
	wg.Wait()

	if cfg.Report.Metrics.InvalidRows > 0 {
		msg := fmt.Sprintf("%d rows had unusable coordinates", cfg.Report.Metrics.InvalidRows)
		if extra := cfg.Report.Metrics.InvalidRows - int64(len(cfg.Report.Metrics.InvalidSamples)); extra > 0 {
			msg += fmt.Sprintf(" (%d not shown)", extra)
		}
		cfg.Report.AddWarning(msg)
	}
	if valueMissing > 0 {
		cfg.Report.AddWarning(fmt.Sprintf("%d points lacked a numeric %q value", valueMissing, cfg.ValueColumn))
	}

	if len(pending) != 0 {
		return nil, fmt.Errorf("incomplete processing: %d rows pending", len(pending))
	}

	return bins, nil
}

func workerLoop(ctx context.Context, jobs <-chan *pointset.Row, results chan<- locateResult, cfg processConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		case row, ok := <-jobs:
			if !ok {
				return
			}
			lr := locateRow(row, cfg)
			select {
			case results <- lr:
			case <-ctx.Done():
				return
			}
		}
	}
}

func locateRow(row *pointset.Row, cfg processConfig) locateResult {
	lr := locateResult{RowNumber: row.RowNumber}

	if row.Err != nil {
		lr.Invalid = true
		lr.Detail = row.Err.Error()
		return lr
	}

	cell, ok := cfg.Grid.Locate(row.Point)
	if !ok {
		return lr
	}
	lr.Located = true
	lr.Cell = cell

	if cfg.ValueColumn != "" {
		lr.Value, lr.HasValue = numericValue(row.Properties[cfg.ValueColumn])
	}
	return lr
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// emit walks the grid in emission order and writes one feature per retained
// cell. Statistic properties pass through the filter and quantizer; col and
// row are attached afterwards so they always survive intact.
func emit(grid *hexgrid.Grid, bins map[hexgrid.Cell]*accumulator, cfg processConfig, write func(*geojson.Feature) error) error {
	var err error
	grid.EachCell(func(c hexgrid.Cell) {
		if err != nil {
			return
		}

		acc := bins[c]
		if acc == nil && !cfg.KeepEmpty {
			return
		}

		stats := make(map[string]any, 6)
		var count int64
		if acc != nil {
			count = acc.count
		}
		stats["count"] = count
		if acc != nil && acc.valueCount > 0 {
			stats["sum"] = acc.sum
			stats["mean"] = acc.sum / float64(acc.valueCount)
			stats["min"] = acc.min
			stats["max"] = acc.max
		}

		filtered := cfg.Filter.Apply(stats)
		qr := cfg.Quantizer.Apply(filtered)
		if qr.Changes > 0 {
			cfg.Report.Metrics.QuantizeApplied = true
			cfg.Report.Metrics.QuantizeChanges += int64(qr.Changes)
			cfg.Report.Metrics.QuantizeTotalError += qr.TotalAbsError
		}

		filtered["col"] = c.Col
		filtered["row"] = c.Row

		f := geojson.NewFeature(grid.Polygon(c))
		f.Properties = geojson.Properties(filtered)

		if wErr := write(f); wErr != nil {
			err = wErr
			return
		}
		cfg.Report.Metrics.EmittedFeatures++
	})
	return err
}
