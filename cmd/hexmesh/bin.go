package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/cobra"

	"github.com/hexmesh/hexmesh/geo"
	"github.com/hexmesh/hexmesh/hexgrid"
	"github.com/hexmesh/hexmesh/internal/binner"
)

func newBinCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bin",
		Short: "Bin Parquet points into a hexagonal grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("in")
			output, _ := cmd.Flags().GetString("out")
			bboxStr, _ := cmd.Flags().GetString("bbox")
			cellStr, _ := cmd.Flags().GetString("cell")
			unitsStr, _ := cmd.Flags().GetString("units")
			valueColumn, _ := cmd.Flags().GetString("value")
			keepEmpty, _ := cmd.Flags().GetBool("keep-empty")
			propsKeepStr, _ := cmd.Flags().GetString("props")
			propsDropStr, _ := cmd.Flags().GetString("props-drop")
			quantizeSpec, _ := cmd.Flags().GetString("quantize")
			threads, _ := cmd.Flags().GetInt("threads")
			format, _ := cmd.Flags().GetString("format")
			reportPath, _ := cmd.Flags().GetString("report")

			bound, err := hexgrid.ParseBBox(bboxStr)
			if err != nil {
				return err
			}
			cellSide, err := hexgrid.ParseCellSide(cellStr)
			if err != nil {
				return err
			}
			units := ""
			if unitsStr != "" {
				unit, err := geo.ParseUnit(unitsStr)
				if err != nil {
					return err
				}
				units = string(unit)
			}

			opts := binner.Options{
				InputPath:       input,
				OutputPath:      output,
				Format:          format,
				BBox:            []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]},
				CellSide:        cellSide,
				Units:           units,
				ValueColumn:     valueColumn,
				KeepEmpty:       keepEmpty,
				PropertyInclude: parseList(propsKeepStr),
				PropertyDrop:    parseList(propsDropStr),
				QuantizeSpec:    quantizeSpec,
				Threads:         threads,
				ReportPath:      reportPath,
			}

			result, err := binner.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			rep := result.Report
			fmt.Fprintf(cmd.OutOrStdout(), "✔ bin complete in %s\n", formatDuration(rep.Metrics.Duration))
			fmt.Fprintf(cmd.OutOrStdout(), "  output: %s (%s)\n", output, formatBytes(rep.Metrics.OutputSize))
			fmt.Fprintf(cmd.OutOrStdout(), "  points: %d binned, %d outside, %d invalid\n",
				rep.Metrics.BinnedPoints, rep.Metrics.OutsidePoints, rep.Metrics.InvalidRows)
			fmt.Fprintf(cmd.OutOrStdout(), "  cells: %d occupied of %d\n",
				rep.Metrics.OccupiedCells, rep.Metrics.GridCells)
			for _, warning := range rep.Metrics.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "  warning: %s\n", warning)
			}
			if reportPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  report: %s\n", reportPath)
			}

			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().String("in", "", "Input Parquet file with point rows")
	cmd.Flags().String("out", "", "Output file path")
	cmd.Flags().String("bbox", "", "Bounding box as west,south,east,north")
	cmd.Flags().String("cell", "", "Cell side length (hexagon circumradius)")
	cmd.Flags().String("units", "kilometers", "Length unit for the cell side")
	cmd.Flags().String("value", "", "Numeric column to aggregate per cell")
	cmd.Flags().Bool("keep-empty", false, "Emit cells that received no points")
	cmd.Flags().String("props", "", "Comma-separated whitelist of properties to keep")
	cmd.Flags().String("props-drop", "", "Glob pattern of properties to drop")
	cmd.Flags().String("quantize", "", "Quantization directives (float=0.01,int=1)")
	cmd.Flags().Int("threads", 0, "Number of worker threads (default: runtime.NumCPU())")
	cmd.Flags().String("format", "", "Output format: geojson or ndjson (default: by extension)")
	cmd.Flags().String("report", "", "Write an HTML run report to this path")

	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("out")
	cmd.MarkFlagRequired("bbox")
	cmd.MarkFlagRequired("cell")

	return cmd
}

func newSampleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate a sample Parquet file with clustered points for testing",
		Long:  "Generate a sample Parquet file containing points clustered around Boston Common with demo data (score, category).",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("out")
			count, _ := cmd.Flags().GetInt("count")
			seed, _ := cmd.Flags().GetInt64("seed")

			return generateSamplePoints(output, count, seed)
		},
	}

	cmd.Flags().StringP("out", "o", "dist/points.parquet", "Output Parquet file path")
	cmd.Flags().IntP("count", "c", 500, "Number of points to generate")
	cmd.Flags().Int64("seed", 42, "Random seed for reproducible output")

	return cmd
}

// sampleRow represents a row in the sample Parquet file
type sampleRow struct {
	Lon      float64
	Lat      float64
	Score    float64
	Category string
}

func generateSamplePoints(outputPath string, count int, seed int64) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Cluster the points around three spots near Boston Common (42.355, -71.065)
	rng := rand.New(rand.NewSource(seed))
	centers := [][2]float64{
		{-71.065, 42.355},
		{-71.092, 42.338},
		{-71.031, 42.372},
	}

	rows := make([]sampleRow, 0, count)
	for i := 0; i < count; i++ {
		center := centers[i%len(centers)]
		score := float64(i%10) * 0.1
		category := "demo"
		if i%2 == 1 {
			category = "test"
		}
		rows = append(rows, sampleRow{
			Lon:      center[0] + rng.NormFloat64()*0.02,
			Lat:      center[1] + rng.NormFloat64()*0.015,
			Score:    score,
			Category: category,
		})
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	schema := parquet.SchemaOf(sampleRow{})
	writer := parquet.NewGenericWriter[sampleRow](file, schema)

	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	fmt.Printf("Generated %d sample points around Boston Common\n", len(rows))
	fmt.Printf("Written to: %s\n", outputPath)

	return nil
}
