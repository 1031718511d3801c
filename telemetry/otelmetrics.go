package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OtelMetrics implements Metrics on top of an OpenTelemetry Meter,
// creating each named instrument lazily on first use and caching it for
// subsequent calls.
type OtelMetrics struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64Gauge
}

// NewOtelMetrics wraps meter as a Metrics implementation.
func NewOtelMetrics(meter metric.Meter) *OtelMetrics {
	return &OtelMetrics{
		meter:      meter,
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]metric.Float64Gauge),
	}
}

func tagsToAttrs(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		attrs = append(attrs, attribute.String(tags[i], tags[i+1]))
	}
	return attrs
}

func (m *OtelMetrics) IncCounter(name string, value float64, tags ...string) {
	m.mu.Lock()
	c, ok := m.counters[name]
	if !ok {
		c, _ = m.meter.Float64Counter(name)
		m.counters[name] = c
	}
	m.mu.Unlock()
	if c != nil {
		c.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
	}
}

func (m *OtelMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	m.mu.Lock()
	h, ok := m.histograms[name]
	if !ok {
		h, _ = m.meter.Float64Histogram(name, metric.WithUnit("ms"))
		m.histograms[name] = h
	}
	m.mu.Unlock()
	if h != nil {
		h.Record(context.Background(), float64(duration.Milliseconds()), metric.WithAttributes(tagsToAttrs(tags)...))
	}
}

func (m *OtelMetrics) RecordGauge(name string, value float64, tags ...string) {
	m.mu.Lock()
	g, ok := m.gauges[name]
	if !ok {
		g, _ = m.meter.Float64Gauge(name)
		m.gauges[name] = g
	}
	m.mu.Unlock()
	if g != nil {
		g.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
	}
}
