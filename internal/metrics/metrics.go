// Package metrics holds the Prometheus collectors of the coin service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ResetsApplied = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coins",
	Name:      "resets_applied_total",
	Help:      "Scheduled balance resets applied by this instance",
})

var Balance = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "coins",
	Name:      "balance",
	Help:      "Last balance written or observed by this instance",
})

var StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coins",
	Name:      "store_errors_total",
	Help:      "Swallowed persistent store failures",
}, []string{"op"})

var CrossTabChanges = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coins",
	Name:      "cross_tab_changes_total",
	Help:      "Store changes from other instances handled by the bridge",
}, []string{"key"})

var Commands = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coins",
	Name:      "commands_total",
	Help:      "Balance commands received from the command queue",
}, []string{"op", "result"})

var StoreEntries = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "coins",
	Name:      "store_entries",
	Help:      "Rows in the coin entry table at the last health check",
})
