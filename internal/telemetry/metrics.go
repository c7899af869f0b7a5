package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the app generation gateway.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestTotal        *prometheus.CounterVec
	RequestDurationMs   *prometheus.HistogramVec
	AuthOutcomeTotal    *prometheus.CounterVec
	StageDurationMs     *prometheus.HistogramVec
	TokensTotal         *prometheus.CounterVec
	GenerationFailTotal *prometheus.CounterVec
	FilterActionTotal   *prometheus.CounterVec
	InstructionsReloads *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appgen_request_total",
			Help: "Total number of requests processed by the gateway.",
		}, []string{"route", "status"}),

		RequestDurationMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "appgen_request_duration_ms",
			Help:    "Total request duration in milliseconds (including provider latency).",
			Buckets: []float64{50, 100, 250, 500, 1000, 5000, 15000, 30000, 60000, 120000},
		}, []string{"route"}),

		AuthOutcomeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appgen_auth_outcome_total",
			Help: "Authentication outcomes by resolving strategy or failure kind.",
		}, []string{"strategy", "outcome"}),

		StageDurationMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "appgen_stage_duration_ms",
			Help:    "Duration of a single generation stage completion call in milliseconds.",
			Buckets: []float64{500, 1000, 2500, 5000, 10000, 20000, 40000, 60000, 120000},
		}, []string{"stage", "provider"}),

		TokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appgen_tokens_total",
			Help: "Total tokens processed per stage.",
		}, []string{"stage", "provider", "direction"}),

		GenerationFailTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appgen_generation_failure_total",
			Help: "Generation pipeline failures by kind.",
		}, []string{"kind"}),

		FilterActionTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appgen_filter_action_total",
			Help: "Total filter actions taken.",
		}, []string{"filter", "action"}),

		InstructionsReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appgen_instructions_reload_total",
			Help: "Supplementary instruction reloads by result.",
		}, []string{"result"}),
	}
}

// RecordRequest records metrics for a completed HTTP request.
func (m *Metrics) RecordRequest(route, status string, durationMs float64) {
	if m == nil {
		return
	}
	m.RequestTotal.WithLabelValues(route, status).Inc()
	m.RequestDurationMs.WithLabelValues(route).Observe(durationMs)
}

// RecordAuth records one authentication outcome. outcome is "ok" on success
// or the failure kind.
func (m *Metrics) RecordAuth(strategy, outcome string) {
	if m == nil {
		return
	}
	m.AuthOutcomeTotal.WithLabelValues(strategy, outcome).Inc()
}

// RecordStage records metrics for one finished generation stage.
func (m *Metrics) RecordStage(labels StageLabels) {
	if m == nil {
		return
	}
	m.StageDurationMs.WithLabelValues(labels.Stage, labels.Provider).Observe(labels.DurationMs)

	if labels.PromptTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Stage, labels.Provider, "prompt").Add(float64(labels.PromptTokens))
	}
	if labels.CompletionTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Stage, labels.Provider, "completion").Add(float64(labels.CompletionTokens))
	}
}

func (m *Metrics) RecordGenerationFailure(kind string) {
	if m == nil {
		return
	}
	m.GenerationFailTotal.WithLabelValues(kind).Inc()
}

// RecordFilterAction records a filter action metric.
func (m *Metrics) RecordFilterAction(filter, action string) {
	if m == nil {
		return
	}
	m.FilterActionTotal.WithLabelValues(filter, action).Inc()
}

func (m *Metrics) RecordInstructionsReload(result string) {
	if m == nil {
		return
	}
	m.InstructionsReloads.WithLabelValues(result).Inc()
}

// StageLabels holds the label values for recording a stage.
type StageLabels struct {
	Stage            string
	Provider         string
	DurationMs       float64
	PromptTokens     int
	CompletionTokens int
}
