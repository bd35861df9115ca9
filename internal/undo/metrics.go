package undo

import "github.com/prometheus/client_golang/prometheus"

var (
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "undo_actions_total",
			Help: "Undoable actions by final outcome.",
		},
		[]string{"outcome"},
	)

	actionsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "undo_actions_pending",
			Help: "Actions currently inside their undo window.",
		},
	)
)

func init() {
	prometheus.MustRegister(actionsTotal, actionsPending)
}
