// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// chat service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring chat
// operations. Metrics include:
//   - Request counters (by outcome)
//   - Per-stage latency histograms (verify, resolve, retrieve, complete)
//   - Credential refresh counters (performed vs deduplicated)
//   - Retrieved-fragment histograms
//   - Active request gauges
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for chat metrics
const chatSubsystem = "drivechat"

// ChatMetrics holds all Prometheus metrics for chat operations.
//
// # Thread Safety
//
// All operations are thread-safe.
type ChatMetrics struct {
	// RequestsTotal counts chat requests by outcome.
	// Labels: outcome (success, auth_required, not_found, retrieval_error,
	// completion_error, invalid_input, upstream_unavailable, timeout,
	// internal)
	RequestsTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage latency.
	// Labels: stage (verify, resolve, retrieve, complete)
	StageDurationSeconds *prometheus.HistogramVec

	// RefreshesTotal counts credential refreshes by kind.
	// Labels: kind (performed, deduplicated)
	RefreshesTotal *prometheus.CounterVec

	// FragmentsRetrieved measures fragments surviving the similarity
	// threshold per request.
	FragmentsRetrieved prometheus.Histogram

	// ActiveRequests tracks chat requests currently in flight.
	ActiveRequests prometheus.Gauge
}

// DefaultMetrics is the singleton instance of ChatMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *ChatMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *ChatMetrics {
	DefaultMetrics = &ChatMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "requests_total",
				Help:      "Total chat requests by outcome",
			},
			[]string{"outcome"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Chat pipeline stage latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"stage"},
		),

		RefreshesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "credential_refreshes_total",
				Help:      "Credential refreshes by kind (performed vs deduplicated)",
			},
			[]string{"kind"},
		),

		FragmentsRetrieved: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "fragments_retrieved",
				Help:      "Fragments surviving the similarity threshold per request",
				Buckets:   []float64{0, 1, 2, 3, 4, 5},
			},
		),

		ActiveRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_requests",
				Help:      "Chat requests currently in flight",
			},
		),
	}

	return DefaultMetrics
}
