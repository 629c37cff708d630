package middleware

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-nlpeval/internal/ports"
)

// metricsNamespace prefixes every exported metric name.
const metricsNamespace = "nlpeval"

// PrometheusMetrics implements ports.MetricsCollector on a Prometheus
// registry. Metric vectors are created on first use and keep the label
// names of that first call; later calls fill missing labels with "" and
// drop unknown ones. Latencies are exported as <operation>_duration_seconds
// histograms.
type PrometheusMetrics struct {
	factory  promauto.Factory
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*labeledVec[*prometheus.CounterVec]
	gauges     map[string]*labeledVec[*prometheus.GaugeVec]
	histograms map[string]*labeledVec[*prometheus.HistogramVec]
}

// labeledVec pairs a metric vector with its label names.
type labeledVec[V any] struct {
	vec    V
	labels []string
}

// NewPrometheusMetrics creates a collector on its own registry, so that
// several collectors can coexist in one process.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	return &PrometheusMetrics{
		factory:    promauto.With(reg),
		registry:   reg,
		counters:   make(map[string]*labeledVec[*prometheus.CounterVec]),
		gauges:     make(map[string]*labeledVec[*prometheus.GaugeVec]),
		histograms: make(map[string]*labeledVec[*prometheus.HistogramVec]),
	}
}

// Registry returns the registry the metrics are registered in.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry { return pm.registry }

// Handler returns an HTTP handler exposing the metrics for scraping.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{Registry: pm.registry})
}

// RecordLatency implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.RecordHistogram(operation+"_duration_seconds", duration.Seconds(), labels)
}

// RecordCounter implements ports.MetricsCollector. Negative values are
// ignored because Prometheus counters only go up.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	if value < 0 {
		return
	}
	pm.mu.Lock()
	lv, ok := pm.counters[metric]
	if !ok {
		names := labelNames(labels)
		lv = &labeledVec[*prometheus.CounterVec]{
			vec: pm.factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      metric,
				Help:      "Counter " + metric + " recorded by the evaluation harness.",
			}, names),
			labels: names,
		}
		pm.counters[metric] = lv
	}
	pm.mu.Unlock()

	lv.vec.WithLabelValues(labelValues(lv.labels, labels)...).Add(value)
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	lv, ok := pm.gauges[metric]
	if !ok {
		names := labelNames(labels)
		lv = &labeledVec[*prometheus.GaugeVec]{
			vec: pm.factory.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      metric,
				Help:      "Gauge " + metric + " recorded by the evaluation harness.",
			}, names),
			labels: names,
		}
		pm.gauges[metric] = lv
	}
	pm.mu.Unlock()

	lv.vec.WithLabelValues(labelValues(lv.labels, labels)...).Set(value)
}

// RecordHistogram implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	lv, ok := pm.histograms[metric]
	if !ok {
		names := labelNames(labels)
		lv = &labeledVec[*prometheus.HistogramVec]{
			vec: pm.factory.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      metric,
				Help:      "Histogram " + metric + " recorded by the evaluation harness.",
				Buckets:   histogramBuckets(metric),
			}, names),
			labels: names,
		}
		pm.histograms[metric] = lv
	}
	pm.mu.Unlock()

	lv.vec.WithLabelValues(labelValues(lv.labels, labels)...).Observe(value)
}

// histogramBuckets picks buckets for probabilities and for durations.
func histogramBuckets(metric string) []float64 {
	if metric == "intent_probability" {
		return prometheus.LinearBuckets(0.1, 0.1, 10)
	}
	return prometheus.DefBuckets
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func labelValues(names []string, labels map[string]string) []string {
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = labels[name]
	}
	return values
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
