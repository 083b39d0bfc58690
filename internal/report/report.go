package report

import (
	"bytes"
	"fmt"
	"html/template"
	"math/bits"
	"os"
	"sort"
	"strings"
	"time"
)

// Config summarises the bin configuration used for a run.
type Config struct {
	InputPath    string
	OutputPath   string
	BBox         string
	CellSide     float64
	Units        string
	ValueColumn  string
	KeepEmpty    bool
	QuantizeSpec string
	PropsKeep    []string
	PropsDrop    []string
	Threads      int
}

// InvalidSample captures one rejected input row for the report.
type InvalidSample struct {
	RowNumber int64
	Message   string
}

// CountEntry renders one row of the per-cell count histogram.
type CountEntry struct {
	Label string
	Cells int64
}

// Metrics holds runtime statistics gathered during a bin run.
type Metrics struct {
	StartedAt          time.Time
	FinishedAt         time.Time
	Duration           time.Duration
	TotalRows          int64
	BinnedPoints       int64
	OutsidePoints      int64
	InvalidRows        int64
	GridCells          int
	OccupiedCells      int64
	EmittedFeatures    int64
	MaxCount           int64
	CountHistogram     map[int]int64
	CountEntries       []CountEntry
	QuantizeApplied    bool
	QuantizeChanges    int64
	QuantizeTotalError float64
	OutputSize         int64
	InvalidSamples     []InvalidSample
	Warnings           []string
}

// Report ties together configuration and metrics.
type Report struct {
	Config  Config
	Metrics Metrics
}

// AddWarning appends a human-readable warning to the report.
func (r *Report) AddWarning(message string) {
	r.Metrics.Warnings = append(r.Metrics.Warnings, message)
}

// AddInvalidSample records one rejected row for display.
func (r *Report) AddInvalidSample(s InvalidSample) {
	r.Metrics.InvalidSamples = append(r.Metrics.InvalidSamples, s)
}

// ObserveCount buckets a per-cell point count into the histogram.
func (r *Report) ObserveCount(count int64) {
	if count <= 0 {
		return
	}
	if r.Metrics.CountHistogram == nil {
		r.Metrics.CountHistogram = make(map[int]int64)
	}
	r.Metrics.CountHistogram[bits.Len64(uint64(count))-1]++
	if count > r.Metrics.MaxCount {
		r.Metrics.MaxCount = count
	}
}

// Prepare final derived metrics (called before rendering).
func (r *Report) prepare() {
	if len(r.Metrics.CountHistogram) > 0 {
		keys := make([]int, 0, len(r.Metrics.CountHistogram))
		for k := range r.Metrics.CountHistogram {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		r.Metrics.CountEntries = make([]CountEntry, 0, len(keys))
		for _, k := range keys {
			r.Metrics.CountEntries = append(r.Metrics.CountEntries, CountEntry{
				Label: bucketLabel(k),
				Cells: r.Metrics.CountHistogram[k],
			})
		}
	}
}

func bucketLabel(exp int) string {
	lo := int64(1) << exp
	hi := lo<<1 - 1
	if lo == hi {
		return fmt.Sprintf("%d", lo)
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}

// WriteHTML renders the report as an HTML file at the given path.
func (r *Report) WriteHTML(path string) error {
	r.prepare()

	funcMap := template.FuncMap{
		"FormatBytes": formatBytes,
		"FormatDuration": func(d time.Duration) string {
			if d <= 0 {
				return "n/a"
			}
			return d.Truncate(time.Millisecond).String()
		},
		"Join": strings.Join,
	}

	tpl, err := template.New("report").Funcs(funcMap).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("parse report template: %w", err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, r); err != nil {
		return fmt.Errorf("execute report template: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func formatBytes(value int64) string {
	if value <= 0 {
		return "0 B"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	f := float64(value)
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

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>hexmesh Bin Report</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 40px; color: #1f2933; }
header { margin-bottom: 32px; }
h1 { font-size: 28px; margin: 0; }
section { margin-bottom: 36px; }
h2 { font-size: 20px; border-bottom: 1px solid #e1e4e8; padding-bottom: 4px; margin-bottom: 16px; }
table { border-collapse: collapse; width: 100%; margin-bottom: 16px; }
th, td { border: 1px solid #d9e2ec; padding: 8px 12px; text-align: left; font-size: 14px; }
th { background: #f0f4f8; }
code { background: #f1f5f9; padding: 2px 4px; border-radius: 4px; }
ul { padding-left: 20px; }
.warning { color: #b43403; }
</style>
</head>
<body>
<header>
  <h1>hexmesh Bin Report</h1>
  <p>Input: <code>{{ .Config.InputPath }}</code> &middot; Output: <code>{{ .Config.OutputPath }}</code></p>
  <p>Started {{ .Metrics.StartedAt.Format "2006-01-02 15:04:05" }} &middot; Duration {{ FormatDuration .Metrics.Duration }}</p>
</header>

<section>
  <h2>Configuration</h2>
  <table>
    <tr><th>Bounding box</th><td><code>{{ .Config.BBox }}</code></td></tr>
    <tr><th>Cell side</th><td>{{ .Config.CellSide }} {{ .Config.Units }}</td></tr>
    <tr><th>Value column</th><td>{{ if .Config.ValueColumn }}{{ .Config.ValueColumn }}{{ else }}counts only{{ end }}</td></tr>
    <tr><th>Keep empty cells</th><td>{{ if .Config.KeepEmpty }}yes{{ else }}no{{ end }}</td></tr>
    <tr><th>Quantization</th><td>{{ if .Config.QuantizeSpec }}{{ .Config.QuantizeSpec }}{{ else }}disabled{{ end }}</td></tr>
    <tr><th>Keep Properties</th><td>{{ if .Config.PropsKeep }}{{ Join .Config.PropsKeep ", " }}{{ else }}all{{ end }}</td></tr>
    <tr><th>Drop Patterns</th><td>{{ if .Config.PropsDrop }}{{ Join .Config.PropsDrop ", " }}{{ else }}none{{ end }}</td></tr>
    <tr><th>Threads</th><td>{{ .Config.Threads }}</td></tr>
  </table>
</section>

<section>
  <h2>Dataset</h2>
  <table>
    <tr><th>Total rows</th><td>{{ .Metrics.TotalRows }}</td></tr>
    <tr><th>Points binned</th><td>{{ .Metrics.BinnedPoints }}</td></tr>
    <tr><th>Points outside grid</th><td>{{ .Metrics.OutsidePoints }}</td></tr>
    <tr><th>Invalid rows</th><td>{{ .Metrics.InvalidRows }}</td></tr>
    <tr><th>Grid cells</th><td>{{ .Metrics.GridCells }}</td></tr>
    <tr><th>Occupied cells</th><td>{{ .Metrics.OccupiedCells }}</td></tr>
    <tr><th>Features emitted</th><td>{{ .Metrics.EmittedFeatures }}</td></tr>
    <tr><th>Densest cell</th><td>{{ if gt .Metrics.MaxCount 0 }}{{ .Metrics.MaxCount }} points{{ else }}n/a{{ end }}</td></tr>
  </table>
  {{ if .Metrics.CountEntries }}
  <h3>Points per cell</h3>
  <table>
    <tr><th>Count</th><th>Cells</th></tr>
    {{ range .Metrics.CountEntries }}
    <tr><td>{{ .Label }}</td><td>{{ .Cells }}</td></tr>
    {{ end }}
  </table>
  {{ end }}
</section>

<section>
  <h2>Artifacts</h2>
  <table>
    <tr><th>Output</th><td><code>{{ .Config.OutputPath }}</code> ({{ FormatBytes .Metrics.OutputSize }})</td></tr>
  </table>
</section>

{{ if or .Metrics.InvalidSamples .Metrics.Warnings }}
<section>
  <h2>Warnings</h2>
  {{ if .Metrics.Warnings }}
  <ul>
    {{ range .Metrics.Warnings }}<li class="warning">{{ . }}</li>{{ end }}
  </ul>
  {{ end }}
  {{ if .Metrics.InvalidSamples }}
  <table>
    <tr><th>Row</th><th>Details</th></tr>
    {{ range .Metrics.InvalidSamples }}
    <tr><td>{{ .RowNumber }}</td><td>{{ .Message }}</td></tr>
    {{ end }}
  </table>
  {{ end }}
</section>
{{ end }}

<section>
  <h2>Quantization</h2>
  <table>
    <tr><th>Applied</th><td>{{ if .Metrics.QuantizeApplied }}yes ({{ .Metrics.QuantizeChanges }} adjustments, total error {{ printf "%.4f" .Metrics.QuantizeTotalError }}){{ else }}no{{ end }}</td></tr>
  </table>
</section>

<footer>
  <p>hexmesh — hexagonal binning toolkit. Generated {{ .Metrics.FinishedAt.Format "2006-01-02 15:04:05" }}.</p>
</footer>
</body>
</html>`
