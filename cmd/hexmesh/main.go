package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hexmesh/hexmesh/geo"
	"github.com/hexmesh/hexmesh/hexgrid"
	"github.com/hexmesh/hexmesh/internal/h3cover"
	"github.com/hexmesh/hexmesh/internal/ndjson"
)

// These variables are set via ldflags during build
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hexmesh",
		Short: "hexmesh: hexagonal GeoJSON grids and point binning",
		Long:  "hexmesh tessellates bounding boxes into hexagonal GeoJSON grids, bins Parquet point datasets into cells, and serves grids over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				fmt.Printf("hexmesh version %s (commit: %s, built: %s)\n", version, commit, date)
				return nil
			}
			return cmd.Help()
		},
	}

	cmd.Flags().BoolP("version", "v", false, "Show version information")
	cmd.AddCommand(newGenerateCommand())
	cmd.AddCommand(newBinCommand())
	cmd.AddCommand(newCoverCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newSchemaCommand())
	cmd.AddCommand(newSampleCommand())
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newPreviewCommand())

	return cmd
}

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a hexagonal grid over a bounding box",
		RunE: func(cmd *cobra.Command, args []string) error {
			bboxStr, _ := cmd.Flags().GetString("bbox")
			cellStr, _ := cmd.Flags().GetString("cell")
			unitsStr, _ := cmd.Flags().GetString("units")
			triangles, _ := cmd.Flags().GetBool("triangles")
			propsStr, _ := cmd.Flags().GetString("properties")
			output, _ := cmd.Flags().GetString("out")
			format, _ := cmd.Flags().GetString("format")

			bound, err := hexgrid.ParseBBox(bboxStr)
			if err != nil {
				return err
			}
			cellSide, err := hexgrid.ParseCellSide(cellStr)
			if err != nil {
				return err
			}
			unit := geo.Kilometers
			if unitsStr != "" {
				if unit, err = geo.ParseUnit(unitsStr); err != nil {
					return err
				}
			}
			var props map[string]any
			if strings.TrimSpace(propsStr) != "" {
				if err := json.Unmarshal([]byte(propsStr), &props); err != nil {
					return fmt.Errorf("parse properties: %w", err)
				}
			}

			grid, err := hexgrid.New(bound, cellSide, hexgrid.Options{
				Units:      unit,
				Properties: props,
				Triangles:  triangles,
			})
			if err != nil {
				return err
			}

			outFormat, err := resolveFormat(output, format)
			if err != nil {
				return err
			}

			if output == "" {
				return writeGridStdout(grid, outFormat, cmd.OutOrStdout())
			}

			start := time.Now()
			written, err := writeGridFile(grid, output, outFormat)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✔ generated %d features in %s\n", grid.FeatureCount(), formatDuration(time.Since(start)))
			fmt.Fprintf(cmd.OutOrStdout(), "  output: %s (%s)\n", output, formatBytes(written))
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().String("bbox", "", "Bounding box as west,south,east,north")
	cmd.Flags().String("cell", "", "Cell side length (hexagon circumradius)")
	cmd.Flags().String("units", "kilometers", "Length unit for the cell side")
	cmd.Flags().Bool("triangles", false, "Emit six triangles per hexagon")
	cmd.Flags().String("properties", "", "JSON object copied onto every feature")
	cmd.Flags().String("out", "", "Output file path (default: stdout)")
	cmd.Flags().String("format", "", "Output format: geojson or ndjson (default: by extension)")

	cmd.MarkFlagRequired("bbox")
	cmd.MarkFlagRequired("cell")

	return cmd
}

func newCoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cover",
		Short: "Cover a bounding box with H3 cells",
		RunE: func(cmd *cobra.Command, args []string) error {
			bboxStr, _ := cmd.Flags().GetString("bbox")
			resolution, _ := cmd.Flags().GetInt("resolution")
			compact, _ := cmd.Flags().GetBool("compact")
			output, _ := cmd.Flags().GetString("out")

			bound, err := hexgrid.ParseBBox(bboxStr)
			if err != nil {
				return err
			}

			fc, err := h3cover.Cover(bound, h3cover.Options{Resolution: resolution, Compact: compact})
			if err != nil {
				return err
			}

			data, err := json.Marshal(fc)
			if err != nil {
				return fmt.Errorf("encode collection: %w", err)
			}

			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			if err := writeFileMkdir(output, data); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✔ covered with %d cells\n", len(fc.Features))
			fmt.Fprintf(cmd.OutOrStdout(), "  output: %s (%s)\n", output, formatBytes(int64(len(data))))
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().String("bbox", "", "Bounding box as west,south,east,north")
	cmd.Flags().Int("resolution", 8, "H3 resolution (0-15)")
	cmd.Flags().Bool("compact", false, "Compact the cover to mixed resolutions")
	cmd.Flags().String("out", "", "Output file path (default: stdout)")

	cmd.MarkFlagRequired("bbox")

	return cmd
}

func resolveFormat(output, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "geojson":
		return "geojson", nil
	case "ndjson":
		return "ndjson", nil
	case "":
		if strings.EqualFold(filepath.Ext(output), ".ndjson") {
			return "ndjson", nil
		}
		return "geojson", nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

func writeGridStdout(grid *hexgrid.Grid, format string, out io.Writer) error {
	fc := grid.Collection()
	if format == "ndjson" {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		for _, f := range fc.Features {
			if err := enc.Encode(f); err != nil {
				return fmt.Errorf("encode feature: %w", err)
			}
		}
		return nil
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func writeGridFile(grid *hexgrid.Grid, output, format string) (int64, error) {
	if format == "ndjson" {
		w, err := ndjson.NewWriter(output)
		if err != nil {
			return 0, err
		}
		if err := w.WriteCollection(grid.Collection()); err != nil {
			w.Close()
			return 0, err
		}
		if err := w.Close(); err != nil {
			return 0, err
		}
		return w.Bytes(), nil
	}

	data, err := json.Marshal(grid.Collection())
	if err != nil {
		return 0, fmt.Errorf("encode collection: %w", err)
	}
	if err := writeFileMkdir(output, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func writeFileMkdir(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func parseList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		switch r {
		case ',', ';':
			return true
		default:
			return false
		}
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.TrimSpace(f)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}
	return d.Truncate(time.Millisecond).String()
}

func formatBytes(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	f := float64(size)
	idx := 0
	for f >= 1024 && idx < len(units)-1 {
		f /= 1024
		idx++
	}
	if f >= 10 || idx == 0 {
		return fmt.Sprintf("%.0f %s", f, units[idx])
	}
	return fmt.Sprintf("%.1f %s", f, units[idx])
}
