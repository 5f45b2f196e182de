package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Unary request metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_gateway_requests_total",
		Help: "Total number of transcription requests",
	}, []string{"transport", "status"})

	transcriptionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "asr_gateway_request_duration_seconds",
		Help:    "Transcription request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"transport"})

	// Streaming session metrics
	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asr_gateway_active_streams",
		Help: "Number of active streaming transcription sessions",
	})

	totalStreams = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_gateway_streams_total",
		Help: "Total number of streaming sessions handled",
	})

	streamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "asr_gateway_stream_duration_seconds",
		Help:    "Duration of streaming sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_gateway_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "asr_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Supervised engine metrics
	engineExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_gateway_engine_exits_total",
		Help: "Exits of the supervised engine process",
	}, []string{"outcome"}) // outcome: "clean" or "error"
)

// RequestMetrics tracks metrics for a single unary request
type RequestMetrics struct {
	transport string
	startTime time.Time
	mu        sync.Mutex
	done      bool
}

// NewRequestMetrics creates a metrics tracker for one unary request
func NewRequestMetrics(transport string) *RequestMetrics {
	return &RequestMetrics{
		transport: transport,
		startTime: time.Now(),
	}
}

// RecordEnd records completion of the request exactly once
func (m *RequestMetrics) RecordEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return
	}
	m.done = true

	transcriptionLatency.WithLabelValues(m.transport).Observe(time.Since(m.startTime).Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	transcriptionRequests.WithLabelValues(m.transport, status).Inc()
}

// StreamMetrics tracks metrics for a single streaming session
type StreamMetrics struct {
	startTime time.Time
}

// NewStreamMetrics creates a metrics tracker for one streaming session
func NewStreamMetrics() *StreamMetrics {
	activeStreams.Inc()
	totalStreams.Inc()
	return &StreamMetrics{startTime: time.Now()}
}

// RecordEnd records the end of a streaming session
func (m *StreamMetrics) RecordEnd() {
	activeStreams.Dec()
	streamDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordAudioBytes records audio bytes processed
func RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

// RecordEngineExit records an exit of the supervised engine process
func RecordEngineExit(exitCode int) {
	outcome := "clean"
	if exitCode != 0 {
		outcome = "error"
	}
	engineExits.WithLabelValues(outcome).Inc()
}
