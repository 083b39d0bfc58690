package validate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb"

	"github.com/hexmesh/hexmesh/hexgrid"
	"github.com/hexmesh/hexmesh/internal/pointset"
)

// Options configures a validation run.
type Options struct {
	InputPath       string
	BBox            []float64
	SampleLimit     int
	ReaderBatchSize int
	ReaderParallel  int
}

// Issue captures an invalid row sample.
type Issue struct {
	RowNumber int64
	Message   string
}

// Result summarises validation findings for a single file. Extent is the
// bounding box of the valid points and is only meaningful when ValidRows > 0.
type Result struct {
	TotalRows      int64
	ValidRows      int64
	InvalidRows    int64
	OutsideRows    int64
	InvalidSamples []Issue
	LonColumn      string
	LatColumn      string
	Extent         orb.Bound
	Duration       time.Duration
}

// Run executes validation on a single Parquet file. When opts.BBox is set,
// valid points falling outside it are counted as OutsideRows.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = 10
	}
	if opts.ReaderBatchSize <= 0 {
		opts.ReaderBatchSize = 2048
	}
	if opts.ReaderParallel <= 0 {
		opts.ReaderParallel = 1
	}

	var bound orb.Bound
	checkBound := false
	if opts.BBox != nil {
		b, err := hexgrid.BoundFrom(opts.BBox)
		if err != nil {
			return nil, err
		}
		bound = b
		checkBound = true
	}

	reader, err := pointset.NewReader(opts.InputPath, pointset.ReaderOptions{BatchSize: opts.ReaderBatchSize, Parallel: opts.ReaderParallel})
	if err != nil {
		return nil, fmt.Errorf("open parquet reader: %w", err)
	}
	defer reader.Close()

	res := &Result{
		LonColumn: reader.LonColumn(),
		LatColumn: reader.LatColumn(),
	}

	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet row: %w", err)
		}

		res.TotalRows++

		if row.Err != nil {
			res.InvalidRows++
			if len(res.InvalidSamples) < opts.SampleLimit {
				res.InvalidSamples = append(res.InvalidSamples, Issue{
					RowNumber: row.RowNumber,
					Message:   row.Err.Error(),
				})
			}
			continue
		}

		res.ValidRows++
		if res.ValidRows == 1 {
			res.Extent = orb.Bound{Min: row.Point, Max: row.Point}
		} else {
			res.Extent = res.Extent.Extend(row.Point)
		}
		if checkBound && !bound.Contains(row.Point) {
			res.OutsideRows++
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}
