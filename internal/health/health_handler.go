package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/unusual-audio/workbench/internal/metrics"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status            string    `json:"status"` // "healthy" while the server is responding
	Timestamp         time.Time `json:"timestamp"`
	Uptime            string    `json:"uptime"`
	Identity          string    `json:"identity"`
	ActiveConnections int64     `json:"active_connections"`
	ConnectionsTotal  int64     `json:"connections_total"`
	CommandsTotal     int64     `json:"commands_total"`
	ProtocolErrors    int64     `json:"protocol_errors_total"`
	Version           string    `json:"version,omitempty"`
}

// StatsProvider supplies the counters reported by the health endpoint
type StatsProvider interface {
	GetStats() metrics.MetricStats
}

// HealthHandler provides the HTTP health check endpoint
type HealthHandler struct {
	startTime time.Time
	stats     StatsProvider
	identity  string
	version   string
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(stats StatsProvider, identity, version string) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		stats:     stats,
		identity:  identity,
		version:   version,
	}
}

// ServeHTTP implements http.Handler interface for the /health endpoint
func (hh *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := hh.stats.GetStats()
	status := HealthStatus{
		Status:            "healthy",
		Timestamp:         time.Now(),
		Uptime:            time.Since(hh.startTime).Round(time.Second).String(),
		Identity:          hh.identity,
		ActiveConnections: snapshot.ActiveConnections,
		ConnectionsTotal:  snapshot.ConnectionsTotal,
		CommandsTotal:     snapshot.CommandsTotal,
		ProtocolErrors:    snapshot.ProtocolErrorsTotal,
		Version:           hh.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(status); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode health status: %v", err), http.StatusInternalServerError)
	}
}
