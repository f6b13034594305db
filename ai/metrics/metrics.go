// Package metrics exposes Prometheus counters for the agent loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts completed orchestration runs.
	RunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "schedsense",
		Subsystem: "agent",
		Name:      "runs_total",
		Help:      "Number of orchestration runs processed.",
	})

	// RoundsTotal counts executed orchestration rounds across all runs.
	RoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "schedsense",
		Subsystem: "agent",
		Name:      "rounds_total",
		Help:      "Number of orchestration rounds executed.",
	})

	// LLMCallsTotal counts provider calls by kind (tool, summarizer).
	LLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedsense",
		Subsystem: "agent",
		Name:      "llm_calls_total",
		Help:      "Number of LLM calls by kind.",
	}, []string{"kind"})

	// ActionsTotal counts dispatched actions by type.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedsense",
		Subsystem: "agent",
		Name:      "actions_total",
		Help:      "Number of dispatched actions by type.",
	}, []string{"type"})

	// TerminationsTotal counts loop terminations by reason.
	TerminationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedsense",
		Subsystem: "agent",
		Name:      "terminations_total",
		Help:      "Number of loop terminations by reason.",
	}, []string{"reason"})

	// RunDuration observes end-to-end run latency in seconds.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "schedsense",
		Subsystem: "agent",
		Name:      "run_duration_seconds",
		Help:      "End-to-end orchestration run duration.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})
)

// Termination reasons.
const (
	ReasonFinalText      = "final_text"
	ReasonDuplicateStop  = "duplicate_action"
	ReasonStaleReadStop  = "stale_read"
	ReasonNoProgressStop = "no_progress"
	ReasonRoundLimit     = "round_limit"
	ReasonLLMError       = "llm_error"
)
