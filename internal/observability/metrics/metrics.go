// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_turn"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Turn metrics
	TurnsTotal    prometheus.Counter
	TurnsActive   prometheus.Gauge
	TurnsSuccess  prometheus.Counter
	TurnsFailed   *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	EmptyReplies  prometheus.Counter
	SilentTurns   prometheus.Counter
	AudioReceived prometheus.Counter

	// Stage metrics
	StageLatency *prometheus.HistogramVec
	StageErrors  *prometheus.CounterVec

	// History metrics
	HistoryEntriesReceived prometheus.Counter
	HistoryEntriesDropped  *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// gRPC metrics
	GRPCRequests *prometheus.CounterVec
	GRPCLatency  *prometheus.HistogramVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Backpressure metrics
	TurnLimitExceeded *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return newMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewMetricsWithRegistry registers the metrics on reg instead of the default
// registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetrics(promauto.With(reg))
}

func newMetrics(f promauto.Factory) *Metrics {
	return &Metrics{
		// Turn metrics
		TurnsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of voice turns started",
		}),
		TurnsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_active",
			Help:      "Number of voice turns in progress",
		}),
		TurnsSuccess: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_success_total",
			Help:      "Total number of turns that produced a spoken reply",
		}),
		TurnsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_failed_total",
			Help:      "Total number of failed turns by failing stage",
		}, []string{"stage"}),
		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End to end turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		EmptyReplies: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_replies_total",
			Help:      "Total number of chat completions without usable text",
		}),
		SilentTurns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "silent_turns_total",
			Help:      "Total number of turns whose transcript was blank",
		}),
		AudioReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total recorded audio bytes received",
		}),

		// Stage metrics
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Latency of each pipeline stage in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 300},
		}, []string{"stage", "provider"}),
		StageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Total number of pipeline stage errors",
		}, []string{"stage", "error_type"}),

		// History metrics
		HistoryEntriesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_entries_received_total",
			Help:      "Total chat history entries received from clients",
		}),
		HistoryEntriesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_entries_dropped_total",
			Help:      "Total malformed chat history entries dropped",
		}, []string{"route"}),

		// HTTP metrics
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status",
		}, []string{"route", "method", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"route"}),

		// gRPC metrics
		GRPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total gRPC calls by method and status code",
		}, []string{"method", "code"}),
		GRPCLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC call latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method"}),

		// Kafka publish metrics
		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Backpressure metrics
		TurnLimitExceeded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_limit_exceeded_total",
			Help:      "Total number of times turn limits were exceeded",
		}, []string{"limit_type"}),
	}
}

// RecordTurnStart records a new turn starting.
func (m *Metrics) RecordTurnStart(audioBytes int) {
	m.TurnsTotal.Inc()
	m.TurnsActive.Inc()
	m.AudioReceived.Add(float64(audioBytes))
}

// RecordTurnEnd records a turn ending. failedStage is empty on success.
func (m *Metrics) RecordTurnEnd(failedStage string, durationSeconds float64) {
	m.TurnsActive.Dec()
	m.TurnDuration.Observe(durationSeconds)
	if failedStage == "" {
		m.TurnsSuccess.Inc()
	} else {
		m.TurnsFailed.WithLabelValues(failedStage).Inc()
	}
}

// RecordStage records the latency of one stage call and its error, if any.
func (m *Metrics) RecordStage(stage, provider string, errorType string, latencySeconds float64) {
	m.StageLatency.WithLabelValues(stage, provider).Observe(latencySeconds)
	if errorType != "" {
		m.StageErrors.WithLabelValues(stage, errorType).Inc()
	}
}

// RecordEmptyReply records a chat completion without usable text.
func (m *Metrics) RecordEmptyReply() {
	m.EmptyReplies.Inc()
}

// RecordSilentTurn records a blank transcript.
func (m *Metrics) RecordSilentTurn() {
	m.SilentTurns.Inc()
}

// RecordHistory records received and dropped chat history entries.
func (m *Metrics) RecordHistory(route string, received, dropped int) {
	m.HistoryEntriesReceived.Add(float64(received))
	if dropped > 0 {
		m.HistoryEntriesDropped.WithLabelValues(route).Add(float64(dropped))
	}
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method string, status int, latencySeconds float64) {
	m.HTTPRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(latencySeconds)
}

// RecordGRPC records a served gRPC call.
func (m *Metrics) RecordGRPC(method, code string, latencySeconds float64) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
	m.GRPCLatency.WithLabelValues(method).Observe(latencySeconds)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordLimitExceeded records when a turn limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.TurnLimitExceeded.WithLabelValues(limitType).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
