// Package server exposes grid generation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hexmesh/hexmesh/geo"
	"github.com/hexmesh/hexmesh/hexgrid"
	"github.com/hexmesh/hexmesh/internal/config"
	"github.com/hexmesh/hexmesh/internal/gridcache"
	"github.com/hexmesh/hexmesh/internal/logger"
	"github.com/hexmesh/hexmesh/internal/metrics"
)

type Server struct {
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Provider
	cache   *gridcache.Cache
}

func New(cfg config.Config, log zerolog.Logger, prov *metrics.Provider) *Server {
	return &Server{
		cfg:     cfg,
		log:     log,
		metrics: prov,
		cache:   gridcache.New(cfg.CacheSize),
	}
}

// Routes assembles the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.observe)
	r.Use(s.recoverPanics)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/grid", s.handleGrid)
	return r
}

// Run serves until the context is cancelled or the listener fails.
func Run(ctx context.Context, cfg config.Config, log zerolog.Logger, prov *metrics.Provider) error {
	s := New(cfg, log, prov)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithRequestID(r.Context(), r.Header.Get("X-Request-Id"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.FromContext(r.Context(), &s.log).Error().
					Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, fmt.Errorf("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.URL.Path, ww.Status(), elapsed)
		logger.FromContext(r.Context(), &s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Msg("http request")
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	bound, err := hexgrid.ParseBBox(q.Get("bbox"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cellSide, err := hexgrid.ParseCellSide(q.Get("cell"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	unit := geo.Kilometers
	if raw := q.Get("units"); raw != "" {
		unit, err = geo.ParseUnit(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	var triangles bool
	switch strings.ToLower(strings.TrimSpace(q.Get("triangles"))) {
	case "", "0", "false", "no":
	case "1", "true", "yes":
		triangles = true
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid triangles value %q", q.Get("triangles")))
		return
	}

	rawProps := q.Get("properties")
	var propsMap map[string]any
	if rawProps != "" {
		if err := json.Unmarshal([]byte(rawProps), &propsMap); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("parse properties: %w", err))
			return
		}
	}

	grid, err := hexgrid.New(bound, cellSide, hexgrid.Options{
		Units:      unit,
		Properties: propsMap,
		Triangles:  triangles,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if max := s.cfg.MaxCells; max > 0 && grid.FeatureCount() > max {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Errorf("grid of %d features exceeds limit %d", grid.FeatureCount(), max))
		return
	}

	key := gridcache.KeyFor(bound, cellSide, unit, triangles, rawProps)

	body, hit := s.cache.Get(key)
	if hit {
		s.metrics.CacheHit()
	} else {
		s.metrics.CacheMiss()
		body, err = json.Marshal(grid.Collection())
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("encode grid: %w", err))
			return
		}
		s.cache.Add(key, body)
		s.metrics.ObserveCells(grid.CellCount())
	}

	etag := fmt.Sprintf("%q", strconv.FormatUint(key, 16))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("ETag", etag)
	w.Header().Set("X-Grid-Cells", strconv.Itoa(grid.CellCount()))
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
