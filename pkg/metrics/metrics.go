// Package metrics provides Prometheus instrumentation for the orchestrator:
// turn counts, graph terminations, tool invocations, and parse fallbacks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the orchestrator's Prometheus collectors.
type Recorder struct {
	turnsTotal        *prometheus.CounterVec
	turnDuration      prometheus.Histogram
	terminationsTotal *prometheus.CounterVec
	toolCallsTotal    *prometheus.CounterVec
	planFallbackTotal prometheus.Counter
	llmCallsTotal     *prometheus.CounterVec
}

// NewRecorder registers the collectors on reg. Passing a fresh registry per
// test keeps collector names from colliding.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_turns_total",
				Help: "Total conversation turns processed, by outcome",
			},
			[]string{"status"},
		),
		turnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chat_turn_duration_seconds",
				Help:    "End-to-end duration of one conversation turn",
				Buckets: prometheus.DefBuckets,
			},
		),
		terminationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graph_terminations_total",
				Help: "Workflow graph terminations by end reason",
			},
			[]string{"reason"},
		),
		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_invocations_total",
				Help: "Tool invocations by tool name and status",
			},
			[]string{"tool", "status"},
		),
		planFallbackTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "plan_parse_fallbacks_total",
				Help: "Planner outputs that fell back to a SIMPLE plan",
			},
		),
		llmCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_calls_total",
				Help: "Model completions by calling component and status",
			},
			[]string{"component", "status"},
		),
	}
}

// ObserveTurn records one finished conversation turn.
func (r *Recorder) ObserveTurn(status string, duration time.Duration) {
	r.turnsTotal.WithLabelValues(status).Inc()
	r.turnDuration.Observe(duration.Seconds())
}

// ObserveTermination records why a workflow graph ended.
func (r *Recorder) ObserveTermination(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	r.terminationsTotal.WithLabelValues(reason).Inc()
}

// ObserveToolCall records one tool invocation.
func (r *Recorder) ObserveToolCall(tool, status string) {
	r.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// ObservePlanFallback records a planner parse fallback.
func (r *Recorder) ObservePlanFallback() {
	r.planFallbackTotal.Inc()
}

// ObserveLLMCall records one model completion.
func (r *Recorder) ObserveLLMCall(component, status string) {
	r.llmCallsTotal.WithLabelValues(component, status).Inc()
}
