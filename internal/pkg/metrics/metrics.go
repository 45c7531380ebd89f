package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts polling cycles by outcome: completed, idle, skipped, failed.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "novawatch",
		Name:      "cycles_total",
		Help:      "Polling cycles by outcome.",
	}, []string{"status"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "novawatch",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of a polling cycle.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	// ItemsTotal counts per-item results: scraped, empty, unparsable, failed.
	ItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "novawatch",
		Name:      "items_total",
		Help:      "Tracked items processed by result.",
	}, []string{"result"})

	// AlertsTotal counts alert attempts: sent, suppressed, failed.
	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "novawatch",
		Name:      "alerts_total",
		Help:      "Price alerts by outcome.",
	}, []string{"outcome"})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "novawatch",
		Name:      "commands_total",
		Help:      "Slash commands handled.",
	}, []string{"command"})

	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "novawatch",
		Name:      "store_errors_total",
		Help:      "Storage errors swallowed by the tracking store.",
	}, []string{"op"})
)
