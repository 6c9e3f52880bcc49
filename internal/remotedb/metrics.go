// SPDX-License-Identifier: MPL-2.0

package remotedb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultUpdated     = "updated"
	resultNotModified = "not_modified"
	resultNetwork     = "network_error"
	resultParse       = "parse_error"
)

var (
	// refreshTotal counts registry refreshes.
	// Labels: result (updated, not_modified, network_error, parse_error)
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owmods",
		Subsystem: "registry",
		Name:      "refresh_total",
		Help:      "Registry refreshes by result",
	}, []string{"result"})

	// refreshDuration measures registry fetch and parse time.
	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "owmods",
		Subsystem: "registry",
		Name:      "refresh_duration_seconds",
		Help:      "Registry fetch and parse latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// skippedEntries counts registry entries dropped by validation.
	skippedEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "owmods",
		Subsystem: "registry",
		Name:      "skipped_entries_total",
		Help:      "Registry entries rejected by validation",
	})

	// registryMods is the size of the current remote snapshot.
	registryMods = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "owmods",
		Subsystem: "registry",
		Name:      "mods",
		Help:      "Number of mods in the current registry snapshot",
	})
)
