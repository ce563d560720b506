package recs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auralis_generation_total",
		Help: "Generation attempts by strategy.",
	}, []string{"strategy"})

	generationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auralis_generation_failures_total",
		Help: "Failed generation attempts by strategy.",
	}, []string{"strategy"})

	generationStale = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auralis_generation_stale_served_total",
		Help: "Requests served from a stale artifact after a failed regeneration.",
	}, []string{"strategy"})
)
