package testutils

import (
	"sync"
	"time"
)

// MetricRecord is one call captured by RecordingMetrics.
type MetricRecord struct {
	Kind   string
	Name   string
	Value  float64
	Labels map[string]string
}

// RecordingMetrics implements ports.MetricsCollector by remembering every
// call. It is safe for concurrent use.
type RecordingMetrics struct {
	mu      sync.Mutex
	records []MetricRecord
}

// NewRecordingMetrics creates an empty RecordingMetrics.
func NewRecordingMetrics() *RecordingMetrics { return &RecordingMetrics{} }

func (m *RecordingMetrics) add(kind, name string, value float64, labels map[string]string) {
	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, MetricRecord{Kind: kind, Name: name, Value: value, Labels: copied})
}

// RecordLatency implements ports.MetricsCollector.
func (m *RecordingMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	m.add("latency", operation, duration.Seconds(), labels)
}

// RecordCounter implements ports.MetricsCollector.
func (m *RecordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	m.add("counter", metric, value, labels)
}

// RecordGauge implements ports.MetricsCollector.
func (m *RecordingMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	m.add("gauge", metric, value, labels)
}

// RecordHistogram implements ports.MetricsCollector.
func (m *RecordingMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.add("histogram", metric, value, labels)
}

// Records returns a copy of every captured call.
func (m *RecordingMetrics) Records() []MetricRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MetricRecord(nil), m.records...)
}

// Find returns the captured calls with the given kind and name.
func (m *RecordingMetrics) Find(kind, name string) []MetricRecord {
	var out []MetricRecord
	for _, r := range m.Records() {
		if r.Kind == kind && r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// Sum adds up the values of the captured calls with the given kind and name.
func (m *RecordingMetrics) Sum(kind, name string) float64 {
	var total float64
	for _, r := range m.Find(kind, name) {
		total += r.Value
	}
	return total
}
