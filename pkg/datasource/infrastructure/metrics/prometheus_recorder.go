// Package metrics instruments data source resolution with Prometheus metrics and OpenTelemetry.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tigerroll/datasource/pkg/datasource/core/port"
)

// Outcomes recorded for a resolution.
const (
	OutcomeSuccess      = "success"
	OutcomeNamingError  = "naming_error"
	OutcomeNotSupported = "not_supported"
	OutcomeError        = "error"
)

// PrometheusRecorder records resolution counts and latencies in its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	resolutions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a PrometheusRecorder with Go runtime and process collectors registered.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datasource_resolutions_total",
			Help: "Total number of data source resolutions by operation, type and outcome.",
		}, []string{"operation", "type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datasource_resolution_duration_seconds",
			Help:    "Duration of data source resolutions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "type"}),
	}
	registry.MustRegister(r.resolutions, r.duration)
	return r
}

// Record records one resolution.
func (r *PrometheusRecorder) Record(op string, typ port.Type, outcome string, elapsed time.Duration) {
	t := typeLabel(typ)
	r.resolutions.WithLabelValues(op, t, outcome).Inc()
	r.duration.WithLabelValues(op, t).Observe(elapsed.Seconds())
}

// Registry returns the registry the recorder writes to.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Outcome classifies the result of a resolution.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, port.ErrNotSupported):
		return OutcomeNotSupported
	case errors.Is(err, port.ErrNaming):
		return OutcomeNamingError
	default:
		return OutcomeError
	}
}

func typeLabel(typ port.Type) string {
	if !typ.Valid() {
		return "any"
	}
	return typ.String()
}
