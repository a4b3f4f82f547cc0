// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the Prometheus instrumentation for the observer.
// All collectors are registered on the default registry at init time and
// served from the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatagramsReceived counts every UDP datagram handed to the parser.
	DatagramsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dhcpscry_datagrams_received_total",
		Help: "Total number of UDP datagrams received on the DHCP listener",
	})

	// DatagramsDropped counts datagrams discarded before producing an
	// observation, labelled by why.
	DatagramsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcpscry_datagrams_dropped_total",
		Help: "Total number of datagrams dropped without an observation",
	}, []string{"reason"})

	// DetectionsTotal counts completed detections by decision method.
	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcpscry_detections_total",
		Help: "Total number of completed OS detections",
	}, []string{"method"})

	// ProbesTotal counts SMB probe attempts by outcome. Outcomes are
	// "success" plus the probe failure reasons.
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcpscry_smb_probes_total",
		Help: "Total number of SMB negotiate probes by outcome",
	}, []string{"outcome"})

	// ProbeDuration observes wall time per SMB probe, queueing included.
	ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dhcpscry_smb_probe_duration_seconds",
		Help:    "SMB negotiate probe duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	// ProbeCacheHits and ProbeCacheMisses track probe cache effectiveness.
	ProbeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dhcpscry_probe_cache_hits_total",
		Help: "Total number of probe cache hits",
	})
	ProbeCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dhcpscry_probe_cache_misses_total",
		Help: "Total number of probe cache misses",
	})

	// ObservationsStored counts rows written to the observation store.
	ObservationsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dhcpscry_observations_stored_total",
		Help: "Total number of observations persisted to the store",
	})

	// WebsocketClients tracks currently connected live-feed clients.
	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dhcpscry_websocket_clients",
		Help: "Number of connected websocket live-feed clients",
	})
)
