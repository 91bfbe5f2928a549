package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voicemap server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Connection metrics
	ActiveConnections prometheus.Gauge
	Connections       prometheus.Counter

	// Chunk metrics
	ChunksReceived prometheus.Counter
	ChunksRejected *prometheus.CounterVec
	Flushes        *prometheus.CounterVec

	// Transcription metrics
	Transcriptions        *prometheus.CounterVec
	TranscriptionAttempts *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram

	// Analysis metrics
	LLMCalls        *prometheus.CounterVec
	LLMDuration     *prometheus.HistogramVec
	RepairAttempts  prometheus.Counter
	MindMapsCreated prometheus.Counter

	// Background task metrics
	TasksInFlight prometheus.Gauge
	TasksFinished *prometheus.CounterVec
}

// New creates and registers all metrics on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicemap_active_connections",
			Help: "Current number of open audio websocket connections",
		}),
		Connections: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicemap_connections_total",
			Help: "Total number of accepted audio websocket connections",
		}),

		ChunksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicemap_chunks_received_total",
			Help: "Total number of audio chunks accepted into a buffer",
		}),
		ChunksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicemap_chunks_rejected_total",
			Help: "Total number of audio chunks rejected, by reason",
		}, []string{"reason"}),
		Flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicemap_flushes_total",
			Help: "Total number of buffer flushes, by trigger",
		}, []string{"reason"}),

		Transcriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicemap_transcriptions_total",
			Help: "Total number of transcription attempts, by outcome",
		}, []string{"outcome"}),
		TranscriptionAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicemap_transcription_strategy_attempts_total",
			Help: "Transcription strategies tried, by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicemap_transcription_duration_seconds",
			Help:    "Time spent transcribing one flush",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		LLMCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicemap_llm_calls_total",
			Help: "Total number of LLM completions, by stage and outcome",
		}, []string{"stage", "outcome"}),
		LLMDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicemap_llm_duration_seconds",
			Help:    "LLM completion latency, by stage",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"stage"}),
		RepairAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicemap_json_repair_attempts_total",
			Help: "Total number of JSON correction requests sent to the LLM",
		}),
		MindMapsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicemap_mind_maps_created_total",
			Help: "Total number of mind maps persisted",
		}),

		TasksInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicemap_background_tasks_in_flight",
			Help: "Background tasks currently queued or running",
		}),
		TasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicemap_background_tasks_finished_total",
			Help: "Finished background tasks, by final state",
		}, []string{"state"}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
	m.ActiveConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

func (m *Metrics) ChunkAccepted() {
	if m == nil {
		return
	}
	m.ChunksReceived.Inc()
}

func (m *Metrics) ChunkRejected(reason string) {
	if m == nil {
		return
	}
	m.ChunksRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Flushed(reason string) {
	if m == nil {
		return
	}
	m.Flushes.WithLabelValues(reason).Inc()
}

func (m *Metrics) TranscriptionFinished(success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Transcriptions.WithLabelValues(outcome(success)).Inc()
	m.TranscriptionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) StrategyTried(strategy string, success bool) {
	if m == nil {
		return
	}
	m.TranscriptionAttempts.WithLabelValues(strategy, outcome(success)).Inc()
}

func (m *Metrics) LLMCall(stage string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(stage, outcome(success)).Inc()
	m.LLMDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) RepairAttempted() {
	if m == nil {
		return
	}
	m.RepairAttempts.Inc()
}

func (m *Metrics) MindMapCreated() {
	if m == nil {
		return
	}
	m.MindMapsCreated.Inc()
}

func (m *Metrics) TaskQueued() {
	if m == nil {
		return
	}
	m.TasksInFlight.Inc()
}

func (m *Metrics) TaskFinished(state string) {
	if m == nil {
		return
	}
	m.TasksInFlight.Dec()
	m.TasksFinished.WithLabelValues(state).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
