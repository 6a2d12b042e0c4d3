package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// TelemetryPollsTotal counts poll cycles by outcome.
	// outcome: ok / missing / short / read / parse
	TelemetryPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerdock_telemetry_polls_total",
			Help: "Total number of telemetry feed poll cycles by outcome.",
		},
		[]string{"outcome"},
	)

	// TelemetryConsecutiveFailures tracks the current parse failure streak.
	TelemetryConsecutiveFailures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "powerdock_telemetry_consecutive_failures",
			Help: "Current streak of consecutive telemetry parse failures.",
		},
	)

	// VoltageWarningsTotal counts suspect per-module samples.
	VoltageWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerdock_voltage_warnings_total",
			Help: "Total number of suspect per-module telemetry samples.",
		},
		[]string{"module", "kind"}, // kind: out_of_range/missing/malformed
	)

	// UpdateChecksTotal counts update checks by result.
	// result: up_to_date / update_available / no_connectivity / auth_failed /
	// not_found / connection_failed / api_error / invalid_response / rejected
	UpdateChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerdock_update_checks_total",
			Help: "Total number of update checks by result.",
		},
		[]string{"result"},
	)

	// InstallerLaunchesTotal counts installer launches by status.
	InstallerLaunchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerdock_installer_launches_total",
			Help: "Total number of installer launches by launch status.",
		},
		[]string{"status"}, // status: started/failed
	)

	// ConnectivityStatus records the result of the last connectivity probe.
	ConnectivityStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "powerdock_connectivity_status",
			Help: "Result of the last connectivity probe (1=connected, 0=disconnected).",
		},
	)
)

// Registry is the agent-wide metrics registry exposed on the HTTP sidecar.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		TelemetryPollsTotal,
		TelemetryConsecutiveFailures,
		VoltageWarningsTotal,
		UpdateChecksTotal,
		InstallerLaunchesTotal,
		ConnectivityStatus,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
