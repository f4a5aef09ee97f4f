package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// PrometheusMetrics tracks server metrics in Prometheus text format
type PrometheusMetrics struct {
	// Counters
	commandsTotal       int64
	protocolErrorsTotal int64
	connectionsTotal    int64

	// Gauges
	activeConnections int64

	// Histograms (simplified - store sum and count for average)
	commandDurationSum   float64
	commandDurationCount int64

	mu sync.RWMutex
}

// NewPrometheusMetrics creates a new Prometheus metrics collector
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

// IncrementCommands increments the dispatched command counter
func (pm *PrometheusMetrics) IncrementCommands() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.commandsTotal++
}

// IncrementProtocolErrors increments the queued SCPI error counter
func (pm *PrometheusMetrics) IncrementProtocolErrors() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.protocolErrorsTotal++
}

// ConnectionOpened increments the active connection gauge and total counter
func (pm *PrometheusMetrics) ConnectionOpened() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.connectionsTotal++
	pm.activeConnections++
}

// ConnectionClosed decrements the active connection gauge
func (pm *PrometheusMetrics) ConnectionClosed() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.activeConnections--
}

// ObserveCommandDuration records the duration of one command dispatch
func (pm *PrometheusMetrics) ObserveCommandDuration(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.commandDurationSum += duration.Seconds()
	pm.commandDurationCount++
}

// GetMetricsText returns metrics in Prometheus text format
func (pm *PrometheusMetrics) GetMetricsText() string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	var avgCommandDuration float64
	if pm.commandDurationCount > 0 {
		avgCommandDuration = pm.commandDurationSum / float64(pm.commandDurationCount)
	}

	return fmt.Sprintf(`# HELP scpi_commands_total Total number of dispatched SCPI command lines
# TYPE scpi_commands_total counter
scpi_commands_total %d

# HELP scpi_protocol_errors_total Total number of SCPI errors queued on the instrument
# TYPE scpi_protocol_errors_total counter
scpi_protocol_errors_total %d

# HELP scpi_connections_total Total number of accepted client connections
# TYPE scpi_connections_total counter
scpi_connections_total %d

# HELP scpi_active_connections Number of currently connected clients
# TYPE scpi_active_connections gauge
scpi_active_connections %d

# HELP scpi_command_duration_seconds Average command dispatch duration in seconds
# TYPE scpi_command_duration_seconds gauge
scpi_command_duration_seconds %.6f

# HELP scpi_command_duration_count Total number of command duration observations
# TYPE scpi_command_duration_count counter
scpi_command_duration_count %d
`,
		pm.commandsTotal,
		pm.protocolErrorsTotal,
		pm.connectionsTotal,
		pm.activeConnections,
		avgCommandDuration,
		pm.commandDurationCount,
	)
}

// MetricStats is a snapshot of the current metric values
type MetricStats struct {
	CommandsTotal       int64
	ProtocolErrorsTotal int64
	ConnectionsTotal    int64
	ActiveConnections   int64
}

// GetStats returns current metric values
func (pm *PrometheusMetrics) GetStats() MetricStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return MetricStats{
		CommandsTotal:       pm.commandsTotal,
		ProtocolErrorsTotal: pm.protocolErrorsTotal,
		ConnectionsTotal:    pm.connectionsTotal,
		ActiveConnections:   pm.activeConnections,
	}
}

// ServeHTTP implements http.Handler interface for the /metrics endpoint
func (pm *PrometheusMetrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, pm.GetMetricsText())
}
