package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Generate outcomes
const (
	OutcomeGenerated = "generated"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Metrics are boring counters about the launcher's own work.
// Every series is labelled by service so one registry can serve any profile.
type Metrics struct {
	registry *prometheus.Registry

	launches      *prometheus.CounterVec
	staleCleanups *prometheus.CounterVec
	childUp       *prometheus.GaugeVec
	childStart    *prometheus.GaugeVec
	childExits    *prometheus.CounterVec
	logBytes      *prometheus.CounterVec
	generate      *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		launches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svclaunch_launches_total",
				Help: "Server launches attempted, by result",
			},
			[]string{"service", "result"},
		),
		staleCleanups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svclaunch_stale_pid_cleanups_total",
				Help: "PID files removed because the recorded process was gone",
			},
			[]string{"service"},
		),
		childUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "svclaunch_child_up",
				Help: "1 while the launched server process is running",
			},
			[]string{"service"},
		),
		childStart: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "svclaunch_child_start_time_seconds",
				Help: "Unix time the server process was launched",
			},
			[]string{"service"},
		),
		childExits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svclaunch_child_exits_total",
				Help: "Server process exits observed by the launcher, by reason",
			},
			[]string{"service", "reason"},
		),
		logBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svclaunch_log_bytes_followed_total",
				Help: "Bytes copied from the server log to stdout",
			},
			[]string{"service"},
		),
		generate: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svclaunch_generate_total",
				Help: "Generated-sources checks, by outcome",
			},
			[]string{"service", "outcome"},
		),
	}

	m.registry.MustRegister(
		m.launches,
		m.staleCleanups,
		m.childUp,
		m.childStart,
		m.childExits,
		m.logBytes,
		m.generate,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for HTTP and textfile export
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// LaunchSucceeded records a started server
func (m *Metrics) LaunchSucceeded(service string, at time.Time) {
	m.launches.WithLabelValues(service, "success").Inc()
	m.childUp.WithLabelValues(service).Set(1)
	m.childStart.WithLabelValues(service).Set(float64(at.Unix()))
}

// LaunchFailed records a server that could not be started
func (m *Metrics) LaunchFailed(service string) {
	m.launches.WithLabelValues(service, "failure").Inc()
}

// StaleRemoved records a stale PID file cleanup
func (m *Metrics) StaleRemoved(service string) {
	m.staleCleanups.WithLabelValues(service).Inc()
}

// ChildExited records the end of the server process
func (m *Metrics) ChildExited(service, reason string) {
	m.childUp.WithLabelValues(service).Set(0)
	m.childExits.WithLabelValues(service, reason).Inc()
}

// LogBytes adds n followed bytes
func (m *Metrics) LogBytes(service string, n int) {
	if n > 0 {
		m.logBytes.WithLabelValues(service).Add(float64(n))
	}
}

// Generate records one ensure-generated check
func (m *Metrics) Generate(service, outcome string) {
	m.generate.WithLabelValues(service, outcome).Inc()
}
