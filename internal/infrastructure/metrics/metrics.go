// Package metrics exposes Prometheus metrics for the exporter.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "autoexpose"

var (
	registerOnce sync.Once

	exportRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "runs_total",
			Help:      "Export runs by origin and status.",
		},
		[]string{"origin", "status"},
	)
	exportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Export run duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"origin"},
	)
	exportedEntities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "entities",
			Help:      "Entities written by the last successful export.",
		},
	)
	registryEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "registry_events_total",
			Help:      "Entity registry events seen by the trigger.",
		},
		[]string{"action", "scheduled"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Register adds the exporter's collectors to the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(exportRuns, exportDuration, exportedEntities, registryEvents, httpRequests, httpDuration)
	})
}

// Recorder records export runs. Its zero value is ready to use.
type Recorder struct{}

// RecordExport counts one export run and, on success, updates the
// exported entity gauge.
func (Recorder) RecordExport(origin, status string, entities int, d time.Duration) {
	Register()
	exportRuns.WithLabelValues(origin, status).Inc()
	exportDuration.WithLabelValues(origin).Observe(d.Seconds())
	if status == "success" {
		exportedEntities.Set(float64(entities))
	}
}

// RecordRegistryEvent counts a registry event and whether it scheduled an export.
func RecordRegistryEvent(action string, scheduled bool) {
	Register()
	registryEvents.WithLabelValues(action, strconv.FormatBool(scheduled)).Inc()
}

// RecordHTTPRequest counts one API request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	Register()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
