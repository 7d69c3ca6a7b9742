// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the Prometheus instrumentation for the resolve, extract,
// and download pipeline. A nil *Metrics is valid and records nothing, so
// components never need to guard their instrumentation calls.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	requestRetries prometheus.Counter

	extractionTotal *prometheus.CounterVec

	downloadsTotal *prometheus.CounterVec
	downloadBytes  prometheus.Counter

	tasksTotal  *prometheus.CounterVec
	tasksActive prometheus.Gauge
}

// New creates the metric set on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kuaigrab",
			Name:      "requests_total",
			Help:      "Upstream HTTP requests by outcome.",
		}, []string{"outcome"}),
		requestRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kuaigrab",
			Name:      "request_retries_total",
			Help:      "Retried upstream HTTP requests.",
		}),
		extractionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kuaigrab",
			Name:      "extractions_total",
			Help:      "Detail-page extraction attempts by result.",
		}, []string{"result"}),
		downloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kuaigrab",
			Name:      "downloads_total",
			Help:      "Media file downloads by result.",
		}, []string{"result"}),
		downloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kuaigrab",
			Name:      "download_bytes_total",
			Help:      "Bytes written to completed media files.",
		}),
		tasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kuaigrab",
			Name:      "tasks_total",
			Help:      "Background download tasks by terminal status.",
		}, []string{"status"}),
		tasksActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "kuaigrab",
			Name:      "tasks_active",
			Help:      "Background download tasks currently running.",
		}),
	}
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.requestRetries.Inc()
}

func (m *Metrics) ObserveExtraction(ok bool) {
	if m == nil {
		return
	}
	m.extractionTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) ObserveDownload(ok bool, bytes int64) {
	if m == nil {
		return
	}
	m.downloadsTotal.WithLabelValues(resultLabel(ok)).Inc()
	if ok && bytes > 0 {
		m.downloadBytes.Add(float64(bytes))
	}
}

func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksActive.Inc()
}

func (m *Metrics) TaskFinished(status string) {
	if m == nil {
		return
	}
	m.tasksActive.Dec()
	m.tasksTotal.WithLabelValues(status).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
