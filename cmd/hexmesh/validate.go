package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hexmesh/hexmesh/hexgrid"
	"github.com/hexmesh/hexmesh/internal/pointset"
	"github.com/hexmesh/hexmesh/internal/validate"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate point Parquet input files",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, _ := cmd.Flags().GetStringArray("in")
			if len(inputs) == 0 {
				return fmt.Errorf("no input files provided")
			}
			bboxStr, _ := cmd.Flags().GetString("bbox")
			sampleLimit, _ := cmd.Flags().GetInt("sample")

			var bbox []float64
			if bboxStr != "" {
				bound, err := hexgrid.ParseBBox(bboxStr)
				if err != nil {
					return err
				}
				bbox = []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}
			}

			hasErrors := false

			for _, path := range inputs {
				opts := validate.Options{
					InputPath:   path,
					BBox:        bbox,
					SampleLimit: sampleLimit,
				}

				res, err := validate.Run(cmd.Context(), opts)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", path)
				fmt.Fprintf(cmd.OutOrStdout(), "  rows: %d valid: %d invalid: %d\n", res.TotalRows, res.ValidRows, res.InvalidRows)
				fmt.Fprintf(cmd.OutOrStdout(), "  columns: %s/%s\n", res.LonColumn, res.LatColumn)
				if res.ValidRows > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "  extent: %g,%g,%g,%g\n",
						res.Extent.Min[0], res.Extent.Min[1], res.Extent.Max[0], res.Extent.Max[1])
				}
				if bbox != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "  outside bbox: %d\n", res.OutsideRows)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  duration: %s\n", formatDuration(res.Duration))

				if res.InvalidRows > 0 {
					hasErrors = true
					fmt.Fprintf(cmd.OutOrStdout(), "  invalid samples:\n")
					for _, sample := range res.InvalidSamples {
						fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", sample.Message)
					}
					if int64(len(res.InvalidSamples)) < res.InvalidRows {
						fmt.Fprintf(cmd.OutOrStdout(), "    ... %d more\n", res.InvalidRows-int64(len(res.InvalidSamples)))
					}
				}
			}

			if hasErrors {
				return fmt.Errorf("validation failed: invalid coordinates detected")
			}

			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().StringArray("in", nil, "Input Parquet files (glob supported by shell)")
	cmd.Flags().String("bbox", "", "Count points outside this west,south,east,north box")
	cmd.Flags().Int("sample", 5, "Number of invalid samples to display")
	cmd.MarkFlagRequired("in")

	return cmd
}

type propertyInfo struct {
	Type    string
	Example string
	Count   int
	Mixed   bool
}

func newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the schema of a point Parquet file",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("in")
			sampleLimit, _ := cmd.Flags().GetInt("sample")
			reader, err := pointset.NewReader(input, pointset.ReaderOptions{BatchSize: sampleLimit, Parallel: 1})
			if err != nil {
				return fmt.Errorf("open parquet reader: %w", err)
			}
			defer reader.Close()

			totalRows := reader.TotalRows()

			props := make(map[string]*propertyInfo)
			invalidSamples := make([]string, 0, 5)
			invalidRows := int64(0)
			sampled := 0

			for sampled < sampleLimit {
				row, err := reader.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return fmt.Errorf("read parquet row: %w", err)
				}

				sampled++

				if row.Err != nil {
					invalidRows++
					if len(invalidSamples) < cap(invalidSamples) {
						invalidSamples = append(invalidSamples, row.Err.Error())
					}
					continue
				}

				for key, value := range row.Properties {
					info := props[key]
					valueType := detectType(value)
					if info == nil {
						info = &propertyInfo{Type: valueType}
						props[key] = info
					}
					if info.Type != valueType {
						info.Mixed = true
					}
					info.Count++
					if info.Example == "" && value != nil {
						info.Example = formatExample(value)
					}
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", input)
			fmt.Fprintf(cmd.OutOrStdout(), "  total rows: %d\n", totalRows)
			fmt.Fprintf(cmd.OutOrStdout(), "  sampled rows: %d (limit %d)\n", sampled, sampleLimit)
			fmt.Fprintf(cmd.OutOrStdout(), "  coordinates: %s/%s\n", reader.LonColumn(), reader.LatColumn())
			fmt.Fprintf(cmd.OutOrStdout(), "  invalid rows: %d\n", invalidRows)
			if len(invalidSamples) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  invalid samples:\n")
				for _, sample := range invalidSamples {
					fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", sample)
				}
				if invalidRows > int64(len(invalidSamples)) {
					fmt.Fprintf(cmd.OutOrStdout(), "    ... %d more\n", invalidRows-int64(len(invalidSamples)))
				}
			}

			if len(props) > 0 {
				names := make([]string, 0, len(props))
				for name := range props {
					names = append(names, name)
				}
				sort.Strings(names)

				fmt.Fprintf(cmd.OutOrStdout(), "  properties:\n")
				for _, name := range names {
					info := props[name]
					typ := info.Type
					if info.Mixed {
						typ = typ + " (mixed)"
					}
					example := info.Example
					if example == "" {
						example = "n/a"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "    %s: %s (%d samples, example %s)\n", name, typ, info.Count, example)
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "  properties: none\n")
			}

			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().String("in", "", "Input Parquet file")
	cmd.Flags().Int("sample", 5000, "Number of rows to sample for schema detection")
	cmd.MarkFlagRequired("in")
	return cmd
}

func detectType(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32, int64, uint, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func formatExample(value any) string {
	switch v := value.(type) {
	case string:
		if len(v) > 48 {
			return fmt.Sprintf("%q", v[:45]+"...")
		}
		return fmt.Sprintf("%q", v)
	default:
		s := fmt.Sprintf("%v", value)
		if len(s) > 48 {
			return s[:45] + "..."
		}
		return s
	}
}
