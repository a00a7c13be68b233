/*
Package monitoring provides Prometheus metrics for the bridge.

# Overview

Every metric carries the bridge_ prefix. The collectors cover the HTTP
surface, the startup sequence (phase gauge, transitions, per-phase
durations, retries, hardware faults), daemon polling, the state stream and
its stability gate, kinematics solves, catalog fetches, and WebSocket
connections.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

	metrics.RecordPhase("connecting", 1)
	metrics.IncRetries()

Tests construct collectors on a private registry so parallel tests never
collide on registration:

	metrics := monitoring.NewMetricsWith(prometheus.NewRegistry())

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
