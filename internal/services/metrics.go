package services

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline collectors. Label values come from closed sets (outcomes, tool
// names from the registry allow-list, fixed op names) so cardinality stays
// bounded.
var (
	enqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_enqueued_total",
			Help: "Inbound messages offered to the queue, by result.",
		},
		[]string{"result"},
	)

	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_pipeline_outcomes_total",
			Help: "Completed pipeline runs by terminal outcome.",
		},
		[]string{"outcome"},
	)

	pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_pipeline_duration_seconds",
			Help:    "Wall time of one pipeline run.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_queue_depth",
			Help: "Messages waiting in the queue.",
		},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tool_calls_total",
			Help: "Tool invocations by tool name and success.",
		},
		[]string{"tool", "ok"},
	)

	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_llm_requests_total",
			Help: "Text-generation calls by operation and result.",
		},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(enqueuedTotal, outcomesTotal, pipelineDuration, queueDepth, toolCallsTotal, llmRequestsTotal)
}

func observeTool(name string, ok bool, known bool) {
	if !known {
		name = "unknown"
	}
	toolCallsTotal.WithLabelValues(name, strconv.FormatBool(ok)).Inc()
}
