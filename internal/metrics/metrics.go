// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	PriceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "price_fetches_total", Help: "Price fetch attempts by source and outcome"},
		[]string{"source", "outcome"},
	)
	PriceFetchLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "price_fetch_latency_seconds", Help: "Latency of a single price request", Buckets: prometheus.DefBuckets},
		[]string{"source"},
	)
	PriceResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "price_resolutions_total", Help: "Resolved prices by provenance (live, cached, fallback)"},
		[]string{"provenance"},
	)
	SweepsTotal         = prometheus.NewCounter(prometheus.CounterOpts{Name: "sweeps_total", Help: "Sweeps computed"})
	SweepRows           = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "sweep_rows", Help: "Rows per sweep", Buckets: prometheus.ExponentialBuckets(1, 2, 10)})
	BandLineErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "band_line_errors_total", Help: "Skipped lines while parsing pasted bands"})

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests by route and status code"},
		[]string{"route", "code"},
	)
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request latency by route", Buckets: prometheus.DefBuckets},
		[]string{"route"},
	)
)

// Init registers every collector on a fresh registry.
func Init(logger *zap.Logger) *prometheus.Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		PriceFetchesTotal, PriceFetchLatencySeconds, PriceResolutionsTotal,
		SweepsTotal, SweepRows, BandLineErrorsTotal,
		HTTPRequestsTotal, HTTPRequestDurationSeconds,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			logger.Warn("metric registration failed",
				zap.String("op", "metrics.Init"),
				zap.Error(err),
			)
		}
	}
	logger.Debug("prometheus metrics initialized", zap.String("op", "metrics.Init"))
	return reg
}

// Handler exposes reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
