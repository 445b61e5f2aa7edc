package knowledgebase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels: result (attached, detached, unchanged, error)
var syncTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "voiceagents",
		Subsystem: "kb",
		Name:      "sync_total",
		Help:      "Knowledge-base synchronizations by outcome",
	},
	[]string{"result"},
)

// Labels: result (generated, fallback)
var describeTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "voiceagents",
		Subsystem: "kb",
		Name:      "describe_total",
		Help:      "Tool description generations by outcome",
	},
	[]string{"result"},
)
