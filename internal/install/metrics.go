// SPDX-License-Identifier: MPL-2.0

package install

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// stepsTotal counts finished plan entries.
	// Labels: outcome (already_satisfied, installed, updated, enabled, disabled, uninstalled, failed)
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owmods",
		Subsystem: "install",
		Name:      "steps_total",
		Help:      "Finished plan entries by outcome",
	}, []string{"outcome"})

	// failuresTotal counts failed entries by error kind.
	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owmods",
		Subsystem: "install",
		Name:      "failures_total",
		Help:      "Failed plan entries by error kind",
	}, []string{"kind"})

	// downloadBytes counts archive bytes written to disk.
	downloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "owmods",
		Subsystem: "install",
		Name:      "download_bytes_total",
		Help:      "Archive bytes downloaded",
	})

	// phaseDuration measures time spent per pipeline phase.
	// Labels: phase (downloading, verifying, extracting, registering, removing)
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "owmods",
		Subsystem: "install",
		Name:      "phase_duration_seconds",
		Help:      "Pipeline phase latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"phase"})

	// inFlight is the number of mods with an operation in progress.
	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "owmods",
		Subsystem: "install",
		Name:      "in_flight",
		Help:      "Mods with an install, update or uninstall in progress",
	})
)
