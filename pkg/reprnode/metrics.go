package reprnode

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Evaluation outcomes.
const (
	outcomeSkipped = "skipped"
	outcomeCreated = "created"
	outcomeRebuilt = "rebuilt"
	outcomeCached  = "cached"
	outcomeFailed  = "failed"
)

// Entity kinds.
const (
	kindRepresentation = "representation"
	kindContext        = "context"
)

var (
	// EvaluationsTotal counts node evaluations by outcome.
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bimrepr_evaluations_total",
			Help: "Total number of representation node evaluations",
		},
		[]string{"outcome"},
	)

	// EntitiesCreatedTotal counts document entities created by nodes.
	EntitiesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bimrepr_entities_created_total",
			Help: "Total number of document entities created by representation nodes",
		},
		[]string{"kind"},
	)

	// EntitiesRemovedTotal counts document entities removed by nodes.
	EntitiesRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bimrepr_entities_removed_total",
			Help: "Total number of document entities removed by representation nodes",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(EvaluationsTotal)
	prometheus.MustRegister(EntitiesCreatedTotal)
	prometheus.MustRegister(EntitiesRemovedTotal)
}
