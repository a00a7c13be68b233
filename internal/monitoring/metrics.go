package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bridge's Prometheus instruments
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Startup metrics
	StartupPhase     prometheus.Gauge
	PhaseTransitions *prometheus.CounterVec
	PhaseDuration    *prometheus.HistogramVec
	StartupRetries   prometheus.Counter
	ReloadFallbacks  prometheus.Counter
	HardwareFaults   prometheus.Counter

	// Daemon polling metrics
	DaemonPolls *prometheus.CounterVec

	// Stream metrics
	StreamFrames     prometheus.Counter
	StreamReconnects prometheus.Counter
	GateResults      *prometheus.CounterVec
	KinematicsSolves *prometheus.CounterVec

	// Catalog metrics
	CatalogFetches *prometheus.CounterVec
	CatalogApps    prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for the health endpoint
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current counter values for the health endpoint
type Snapshot struct {
	TotalRequests int64
	TotalErrors   int64
}

// NewMetrics creates a metrics collector registered on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector on the given registerer.
// Tests pass a fresh registry to avoid duplicate registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Startup metrics
		StartupPhase: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_startup_phase",
				Help: "Current startup phase ordinal (0=scanning .. 5=ready, 6=error)",
			},
		),
		PhaseTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_startup_phase_transitions_total",
				Help: "Total number of startup phase transitions",
			},
			[]string{"phase"},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_startup_phase_duration_seconds",
				Help:    "Time spent in each startup phase",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"phase"},
		),
		StartupRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_startup_retries_total",
				Help: "Total number of startup retries",
			},
		),
		ReloadFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_startup_reload_fallbacks_total",
				Help: "Retries that fell back to a full reload because no restart hook was available",
			},
		),
		HardwareFaults: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_startup_hardware_faults_total",
				Help: "Hardware faults reported during startup",
			},
		),

		// Daemon polling metrics
		DaemonPolls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_daemon_polls_total",
				Help: "Daemon readiness polls by outcome",
			},
			[]string{"outcome"},
		),

		// Stream metrics
		StreamFrames: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_stream_frames_total",
				Help: "State stream frames received from the daemon",
			},
		),
		StreamReconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_stream_reconnects_total",
				Help: "State stream reconnect attempts",
			},
		),
		GateResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_stream_gate_results_total",
				Help: "Stream stability gate outcomes",
			},
			[]string{"result"},
		),
		KinematicsSolves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_kinematics_solves_total",
				Help: "Passive joint solves by status",
			},
			[]string{"status"},
		),

		// Catalog metrics
		CatalogFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_catalog_fetches_total",
				Help: "Catalog source fetches by source and status",
			},
			[]string{"source", "status"},
		),
		CatalogApps: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_catalog_apps",
				Help: "Number of apps in the current catalog snapshot",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_uptime_seconds",
				Help: "Bridge uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime refreshes the uptime gauge once a second
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records one request in Prometheus and the health snapshot
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordPhase records a transition into a phase
func (m *Metrics) RecordPhase(phase string, ordinal int) {
	m.StartupPhase.Set(float64(ordinal))
	m.PhaseTransitions.WithLabelValues(phase).Inc()
}

// ObservePhaseDuration records how long a phase lasted
func (m *Metrics) ObservePhaseDuration(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordDaemonPoll records one readiness poll outcome
func (m *Metrics) RecordDaemonPoll(outcome string) {
	m.DaemonPolls.WithLabelValues(outcome).Inc()
}

// RecordGateResult records a stability gate outcome
func (m *Metrics) RecordGateResult(result string) {
	m.GateResults.WithLabelValues(result).Inc()
}

// RecordKinematicsSolve records a passive joint solve outcome
func (m *Metrics) RecordKinematicsSolve(status string) {
	m.KinematicsSolves.WithLabelValues(status).Inc()
}

// RecordCatalogFetch records a catalog source fetch outcome
func (m *Metrics) RecordCatalogFetch(source, status string) {
	m.CatalogFetches.WithLabelValues(source, status).Inc()
}

// SetCatalogApps sets the catalog snapshot size
func (m *Metrics) SetCatalogApps(count int) {
	m.CatalogApps.Set(float64(count))
}

// IncStreamFrames increments the received frame counter
func (m *Metrics) IncStreamFrames() {
	m.StreamFrames.Inc()
}

// IncStreamReconnects increments the stream reconnect counter
func (m *Metrics) IncStreamReconnects() {
	m.StreamReconnects.Inc()
}

// IncRetries increments the startup retry counter
func (m *Metrics) IncRetries() {
	m.StartupRetries.Inc()
}

// IncReloadFallbacks increments the reload fallback counter
func (m *Metrics) IncReloadFallbacks() {
	m.ReloadFallbacks.Inc()
}

// IncHardwareFaults increments the hardware fault counter
func (m *Metrics) IncHardwareFaults() {
	m.HardwareFaults.Inc()
}

// IncWSConnections increments the connected client gauge
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements the connected client gauge
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// GetSnapshot returns current counter values for the health endpoint
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
