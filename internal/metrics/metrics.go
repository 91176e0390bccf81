// Package metrics exposes the process's Prometheus gauges/counters/
// histograms, adapted from go-server/internal/metrics/metrics.go's
// promauto-constructed-struct shape to this server's domain: bus
// traffic, backend query latency, timeline stream activity, and the
// durable-intent task manager's queue depth.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/gauge/histogram the server records.
// Construct once per process with New and pass the handle down to
// whichever component emits that metric.
type Metrics struct {
	busMessagesPublished *prometheus.CounterVec
	busMessagesReceived  *prometheus.CounterVec
	busDecodeErrors      *prometheus.CounterVec
	busConnected         prometheus.Gauge
	busReconnects        prometheus.Counter

	relationalQueryLatency prometheus.Histogram
	columnQueryLatency     prometheus.Histogram
	relationalErrors       prometheus.Counter
	columnErrors           prometheus.Counter

	timelineHistoricalActive prometheus.Gauge
	timelineRealTimeActive   prometheus.Gauge
	timelineMessagesEmitted  *prometheus.CounterVec

	taskManagerQueueDepth prometheus.Gauge
	taskManagerCompleted  prometheus.Counter
}

// New constructs and registers every metric against the default
// Prometheus registry.
func New() *Metrics {
	return &Metrics{
		busMessagesPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_bus_messages_published_total",
			Help: "Total number of messages published per bus subject.",
		}, []string{"subject"}),
		busMessagesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_bus_messages_received_total",
			Help: "Total number of messages received per bus subject.",
		}, []string{"subject"}),
		busDecodeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_bus_decode_errors_total",
			Help: "Total number of per-item decode failures on subscriber streams, by subject.",
		}, []string{"subject"}),
		busConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "timeline_bus_connected",
			Help: "1 if the event-bus connection is currently up, 0 otherwise.",
		}),
		busReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeline_bus_reconnects_total",
			Help: "Total number of bus reconnects.",
		}),

		relationalQueryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "timeline_relational_query_duration_seconds",
			Help:    "Latency of relational store queries.",
			Buckets: prometheus.DefBuckets,
		}),
		columnQueryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "timeline_column_query_duration_seconds",
			Help:    "Latency of column store per-bucket queries.",
			Buckets: prometheus.DefBuckets,
		}),
		relationalErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeline_relational_errors_total",
			Help: "Total number of relational store query failures.",
		}),
		columnErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeline_column_errors_total",
			Help: "Total number of column store query failures.",
		}),

		timelineHistoricalActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "timeline_historical_streams_active",
			Help: "Number of historical timeline streams currently open.",
		}),
		timelineRealTimeActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "timeline_realtime_streams_active",
			Help: "Number of real-time timeline streams currently open.",
		}),
		timelineMessagesEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_messages_emitted_total",
			Help: "Total number of messages emitted to timeline consumers, by stream kind (historical|realtime).",
		}, []string{"kind"}),

		taskManagerQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "timeline_taskmanager_queue_depth",
			Help: "Current number of in-flight durable-intent tasks.",
		}),
		taskManagerCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeline_taskmanager_tasks_completed_total",
			Help: "Total number of durable-intent tasks completed.",
		}),
	}
}

// RecordBusPublish increments the publish counter for subject.
func (m *Metrics) RecordBusPublish(subject string) {
	m.busMessagesPublished.WithLabelValues(subject).Inc()
}

// RecordBusReceive increments the receive counter for subject.
func (m *Metrics) RecordBusReceive(subject string) {
	m.busMessagesReceived.WithLabelValues(subject).Inc()
}

// RecordBusDecodeError increments the per-item decode-error counter for subject.
func (m *Metrics) RecordBusDecodeError(subject string) {
	m.busDecodeErrors.WithLabelValues(subject).Inc()
}

// SetBusConnected records the current bus connection state.
func (m *Metrics) SetBusConnected(connected bool) {
	if connected {
		m.busConnected.Set(1)
		return
	}
	m.busConnected.Set(0)
}

// RecordBusReconnect increments the reconnect counter.
func (m *Metrics) RecordBusReconnect() {
	m.busReconnects.Inc()
}

// ObserveRelationalQuery records how long a relational query took.
func (m *Metrics) ObserveRelationalQuery(d time.Duration) {
	m.relationalQueryLatency.Observe(d.Seconds())
}

// ObserveColumnQuery records how long a column-store query took.
func (m *Metrics) ObserveColumnQuery(d time.Duration) {
	m.columnQueryLatency.Observe(d.Seconds())
}

// RecordRelationalError increments the relational error counter.
func (m *Metrics) RecordRelationalError() {
	m.relationalErrors.Inc()
}

// RecordColumnError increments the column store error counter.
func (m *Metrics) RecordColumnError() {
	m.columnErrors.Inc()
}

// HistoricalStreamOpened/Closed track concurrently open historical streams.
func (m *Metrics) HistoricalStreamOpened() { m.timelineHistoricalActive.Inc() }
func (m *Metrics) HistoricalStreamClosed() { m.timelineHistoricalActive.Dec() }

// RealTimeStreamOpened/Closed track concurrently open real-time streams.
func (m *Metrics) RealTimeStreamOpened() { m.timelineRealTimeActive.Inc() }
func (m *Metrics) RealTimeStreamClosed() { m.timelineRealTimeActive.Dec() }

// RecordMessageEmitted increments the emitted-message counter for the given stream kind.
func (m *Metrics) RecordMessageEmitted(kind string) {
	m.timelineMessagesEmitted.WithLabelValues(kind).Inc()
}

// SetTaskQueueDepth records the task manager's current in-flight count.
func (m *Metrics) SetTaskQueueDepth(n int) {
	m.taskManagerQueueDepth.Set(float64(n))
}

// RecordTaskCompleted increments the completed-task counter.
func (m *Metrics) RecordTaskCompleted() {
	m.taskManagerCompleted.Inc()
}
