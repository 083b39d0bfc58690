// Package metrics exposes Prometheus metrics for the grid server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

type Provider struct {
	reg *prometheus.Registry

	buildInfo    *prometheus.GaugeVec
	requests     *prometheus.CounterVec
	requestTime  *prometheus.HistogramVec
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	cellsEmitted prometheus.Histogram
}

func Init(build BuildInfo) *Provider {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bi := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hexmesh_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version", "commit", "build_date"},
	)
	if build.Version == "" {
		build.Version = "dev"
	}
	bi.WithLabelValues(build.Version, build.Commit, build.BuildDate).Set(1)

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hexmesh_http_requests_total",
			Help: "HTTP requests served, by route and status code.",
		},
		[]string{"route", "code"},
	)

	requestTime := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hexmesh_http_request_duration_seconds",
			Help:    "HTTP request latency, by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hexmesh_grid_cache_hits_total",
		Help: "Grid responses served from the in-memory cache.",
	})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hexmesh_grid_cache_misses_total",
		Help: "Grid responses that had to be generated.",
	})

	cellsEmitted := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hexmesh_grid_cells",
		Help:    "Cells per generated grid response.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	reg.MustRegister(bi, requests, requestTime, cacheHits, cacheMisses, cellsEmitted)

	return &Provider{
		reg:          reg,
		buildInfo:    bi,
		requests:     requests,
		requestTime:  requestTime,
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
		cellsEmitted: cellsEmitted,
	}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) ObserveRequest(route string, code int, elapsed time.Duration) {
	p.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	p.requestTime.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (p *Provider) CacheHit()  { p.cacheHits.Inc() }
func (p *Provider) CacheMiss() { p.cacheMisses.Inc() }

func (p *Provider) ObserveCells(n int) {
	p.cellsEmitted.Observe(float64(n))
}
