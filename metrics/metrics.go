// Package metrics exposes Prometheus collectors for the image server.
//
// A nil *Metrics is valid and records nothing, so handlers and the shard
// engine can be wired without checking whether metrics are enabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/greut/sipi/shard"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	resizesTotal    *prometheus.CounterVec
	thumbnailsTotal *prometheus.CounterVec
	migrationSteps  *prometheus.CounterVec
	shardLevels     prometheus.Gauge
}

// New creates the collectors. When enabled is false it returns nil.
func New(enabled bool) *Metrics {
	if !enabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry: reg,
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sipi_http_requests_total",
				Help: "Total number of HTTP requests by handler and status",
			},
			[]string{"handler", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "sipi_http_request_duration_milliseconds",
				Help: "Duration of HTTP requests in milliseconds",
				Buckets: []float64{
					1,
					10,
					100,
					1000,
					10000,
				},
			},
			[]string{"handler"},
		),
		resizesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sipi_resizes_total",
				Help: "Rendered images by whether halving alone produced the size",
			},
			[]string{"reduce_only"},
		),
		thumbnailsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sipi_thumbnails_total",
				Help: "Thumbnail cache lookups by result",
			},
			[]string{"result"},
		),
		migrationSteps: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sipi_shard_migration_steps_total",
				Help: "Shard migration steps applied by operation",
			},
			[]string{"op"},
		),
		shardLevels: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "sipi_shard_levels",
				Help: "Current depth of the shard tree",
			},
		),
	}
}

// Enabled reports whether m records anything.
func (m *Metrics) Enabled() bool {
	return m != nil
}

func (m *Metrics) ObserveRequest(handler string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(handler).Observe(float64(duration.Milliseconds()))
}

func (m *Metrics) ObserveResize(reduceOnly bool) {
	if m == nil {
		return
	}
	m.resizesTotal.WithLabelValues(strconv.FormatBool(reduceOnly)).Inc()
}

// ObserveThumbnail counts a rendering ("miss") or a cache hit ("hit").
func (m *Metrics) ObserveThumbnail(result string) {
	if m == nil {
		return
	}
	m.thumbnailsTotal.WithLabelValues(result).Inc()
}

// ObserveStep matches shard.WithObserver.
func (m *Metrics) ObserveStep(s shard.Step) {
	if m == nil {
		return
	}
	m.migrationSteps.WithLabelValues(string(s.Op)).Inc()
}

func (m *Metrics) SetShardLevels(levels int) {
	if m == nil {
		return
	}
	m.shardLevels.Set(float64(levels))
}

// Handler serves the exposition format, or 404 when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

