package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync engine counters. Fallbacks are not client-visible failures, so they
// are only observable here and in the logs.
var (
	SyncOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_sync_operations_total",
		Help: "Sync operations by entry point and outcome.",
	}, []string{"op", "outcome"})

	SyncFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_sync_fallbacks_total",
		Help: "Legacy syncs resolved by clear-and-rewrite, by alignment rejection reason.",
	}, []string{"reason"})

	MessagesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_messages_written_total",
		Help: "Messages written by mutation kind.",
	}, []string{"kind"})
)
