// Package metrics holds the Prometheus collectors for gossip and merge
// activity. They register on the default registry and are served at
// /metrics by the HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntriesAppended counts local appends.
	EntriesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clawnet_log_entries_appended_total",
		Help: "Total log entries appended locally",
	})

	// EntriesMerged counts remote entries by merge outcome.
	EntriesMerged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clawnet_log_entries_merged_total",
		Help: "Total remote log entries by merge result",
	}, []string{"result"}) // merged, invalid, duplicate

	// MessagesPublished counts gossip messages written.
	MessagesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clawnet_gossip_messages_published_total",
		Help: "Total gossip messages published",
	})

	// MessagesReceived counts gossip messages delivered by sync.
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clawnet_gossip_messages_received_total",
		Help: "Total gossip messages received",
	})

	// PatternsFiltered counts inbound patterns by policy outcome.
	PatternsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clawnet_patterns_inbound_total",
		Help: "Inbound patterns by outcome",
	}, []string{"outcome"}) // irrelevant, accepted, quarantined, blocked

	// MessagesExpired counts exchange messages removed by expiry.
	MessagesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clawnet_gossip_messages_expired_total",
		Help: "Total gossip messages removed by TTL expiry",
	})

	// SyncDuration tracks sync cycle latency.
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clawnet_sync_duration_seconds",
		Help:    "Sync cycle duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	// SyncErrors counts failed sync cycles by stage.
	SyncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clawnet_sync_errors_total",
		Help: "Total sync errors by stage",
	}, []string{"stage"}) // list, save, expire

	// LogEntries is the current log length.
	LogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clawnet_log_entries",
		Help: "Current number of log entries",
	})

	// KnownPeers is the number of tracked remote peers.
	KnownPeers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clawnet_known_peers",
		Help: "Number of remote peers seen on the exchange",
	})
)
