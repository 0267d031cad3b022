// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts protocol commands by action and outcome code
	// ("ok" or an error code).
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfloor_commands_total",
			Help: "Total number of task commands handled",
		},
		[]string{"action", "result"},
	)

	// TransitionsTotal counts task status transitions by target status.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfloor_task_transitions_total",
			Help: "Total number of task status transitions",
		},
		[]string{"to"},
	)

	// StoreErrorsTotal counts failed store commits by origin ("tick" or "command").
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfloor_store_errors_total",
			Help: "Total number of failed task store commits",
		},
		[]string{"origin"},
	)

	// BroadcastsTotal counts state snapshots fanned out to observers.
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopfloor_broadcasts_total",
			Help: "Total number of state broadcasts",
		},
	)

	// ObserversRemovedTotal counts observers dropped after a failed delivery.
	ObserversRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopfloor_observers_removed_total",
			Help: "Total number of observers removed after a delivery failure",
		},
	)

	// ObserversConnected is the current registry size.
	ObserversConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shopfloor_observers_connected",
			Help: "Number of currently registered observers",
		},
	)

	// TasksByStatus is the current task count per status.
	TasksByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shopfloor_tasks",
			Help: "Number of tasks in the table by status",
		},
		[]string{"status"},
	)

	// TickDurationSeconds tracks how long one scheduler tick takes.
	TickDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopfloor_tick_duration_seconds",
			Help:    "Histogram of scheduler tick duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)
)
