package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
)

func newPreviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview a GeoJSON or NDJSON grid locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("in")
			port, _ := cmd.Flags().GetInt("port")
			autoOpen, _ := cmd.Flags().GetBool("open")
			return startPreview(cmd.Context(), input, port, autoOpen, cmd.OutOrStdout())
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().String("in", "", "GeoJSON or NDJSON file to preview")
	cmd.Flags().Int("port", 0, "Port for the preview server (0 selects a random port)")
	cmd.Flags().Bool("open", false, "Open the preview in your default browser")
	cmd.MarkFlagRequired("in")
	return cmd
}

func startPreview(parentCtx context.Context, inputPath string, port int, autoOpen bool, out io.Writer) error {
	absPath, err := filepath.Abs(inputPath)
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}

	fc, data, err := loadCollection(absPath)
	if err != nil {
		return err
	}

	bounds, maxCount := previewExtents(fc)

	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt)
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if err := previewTemplate.Execute(w, map[string]any{
			"DataPath": "/data.geojson",
			"Bounds":   bounds,
			"MaxCount": maxCount,
		}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/data.geojson", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write(data)
	})

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
		close(errCh)
	}()

	url := fmt.Sprintf("http://%s", listener.Addr().String())
	fmt.Fprintf(out, "Preview of %d features available at %s\n", len(fc.Features), url)

	if autoOpen {
		if err := openBrowser(url); err != nil {
			fmt.Fprintf(out, "(failed to open browser: %v)\n", err)
		}
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	case serveErr := <-errCh:
		if serveErr != nil {
			return serveErr
		}
	}

	return nil
}

// loadCollection reads a feature collection from either a GeoJSON file or an
// NDJSON file with one feature per line, returning the bytes to serve.
func loadCollection(path string) (*geojson.FeatureCollection, []byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".ndjson") {
		fc := geojson.NewFeatureCollection()
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			raw := strings.TrimSpace(scanner.Text())
			if raw == "" {
				continue
			}
			f, err := geojson.UnmarshalFeature([]byte(raw))
			if err != nil {
				return nil, nil, fmt.Errorf("parse line %d: %w", line, err)
			}
			fc.Append(f)
		}
		if err := scanner.Err(); err != nil {
			return nil, nil, fmt.Errorf("read input: %w", err)
		}
		data, err := json.Marshal(fc)
		if err != nil {
			return nil, nil, fmt.Errorf("encode collection: %w", err)
		}
		return fc, data, nil
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, fmt.Errorf("read input: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse input: %w", err)
	}
	return fc, data, nil
}

// previewExtents derives the fit bounds and the densest count value so the
// page can center the map and scale the fill ramp.
func previewExtents(fc *geojson.FeatureCollection) (template.JS, float64) {
	var bound orb.Bound
	found := false
	maxCount := 0.0

	for _, f := range fc.Features {
		if f.Geometry != nil {
			gb := f.Geometry.Bound()
			if !found {
				bound = gb
				found = true
			} else {
				bound = bound.Union(gb)
			}
		}
		if v := f.Properties.MustFloat64("count", 0); v > maxCount {
			maxCount = v
		}
	}

	if !found {
		return template.JS("null"), maxCount
	}
	return template.JS(fmt.Sprintf("[%g,%g,%g,%g]",
		bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1])), maxCount
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

var previewTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8" />
<title>hexmesh Preview</title>
<link href="https://unpkg.com/maplibre-gl@2.4.0/dist/maplibre-gl.css" rel="stylesheet" />
<script src="https://unpkg.com/maplibre-gl@2.4.0/dist/maplibre-gl.js"></script>
<style>
  html, body { height: 100%; margin: 0; }
  #map { height: 100%; width: 100%; }
</style>
</head>
<body>
<div id="map"></div>
<script>
(function() {
  const bounds = {{.Bounds}};
  const maxCount = {{.MaxCount}};

  const fillColor = maxCount > 0
    ? ["interpolate", ["linear"], ["coalesce", ["get", "count"], 0],
       0, "#f1faee", maxCount, "#1d3557"]
    : "#277da1";

  const map = new maplibregl.Map({
    container: "map",
    style: {
      version: 8,
      sources: {
        grid: {
          type: "geojson",
          data: "{{.DataPath}}"
        }
      },
      layers: [
        {
          id: "grid-fill",
          type: "fill",
          source: "grid",
          paint: {
            "fill-color": fillColor,
            "fill-opacity": 0.65,
            "fill-outline-color": "#1d3557"
          }
        }
      ]
    },
    center: [0, 0],
    zoom: 2
  });

  map.addControl(new maplibregl.NavigationControl());

  if (bounds) {
    map.fitBounds([[bounds[0], bounds[1]], [bounds[2], bounds[3]]], { padding: 20 });
  }
})();
</script>
</body>
</html>`))
