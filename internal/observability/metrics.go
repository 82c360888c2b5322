package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors in a private registry so
// a run can be dumped to a node-exporter textfile.
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	retries           *prometheus.CounterVec
	stateResources    prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "converge",
				Name:      "operations_total",
				Help:      "Total provider operations by resource type, action and result",
			},
			[]string{"type", "action", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "converge",
				Name:      "operation_duration_seconds",
				Help:      "Duration of provider operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27m
			},
			[]string{"type", "action"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "converge",
				Name:      "retries_total",
				Help:      "Total retries of throttled provider calls",
			},
			[]string{"type"},
		),
		stateResources: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "converge",
				Name:      "state_resources",
				Help:      "Number of resource instances recorded in state",
			},
		),
	}
	m.registry.MustRegister(m.operations, m.operationDuration, m.retries, m.stateResources)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordOperation records one finished provider operation.
func (m *Metrics) RecordOperation(resourceType, action string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(resourceType, action, result).Inc()
	m.operationDuration.WithLabelValues(resourceType, action).Observe(duration.Seconds())
}

// RecordRetry counts a retry of a throttled call.
func (m *Metrics) RecordRetry(resourceType string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(resourceType).Inc()
}

// SetStateResources records the size of the state.
func (m *Metrics) SetStateResources(n int) {
	if m == nil {
		return
	}
	m.stateResources.Set(float64(n))
}

// WriteToTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
