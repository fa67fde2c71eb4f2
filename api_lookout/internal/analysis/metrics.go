package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookout_analysis_completions_total",
		Help: "LLM completions requested by the analysis stages.",
	}, []string{"kind", "outcome"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookout_analysis_tokens_total",
		Help: "LLM tokens consumed by the analysis stages.",
	}, []string{"direction"})
)
