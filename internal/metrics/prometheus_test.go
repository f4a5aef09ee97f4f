package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusMetricsCounters(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementCommands()
	pm.IncrementCommands()
	pm.IncrementProtocolErrors()
	pm.ConnectionOpened()
	pm.ConnectionOpened()
	pm.ConnectionClosed()
	pm.ObserveCommandDuration(10 * time.Millisecond)

	stats := pm.GetStats()
	if stats.CommandsTotal != 2 {
		t.Errorf("CommandsTotal = %d, want 2", stats.CommandsTotal)
	}
	if stats.ProtocolErrorsTotal != 1 {
		t.Errorf("ProtocolErrorsTotal = %d, want 1", stats.ProtocolErrorsTotal)
	}
	if stats.ConnectionsTotal != 2 {
		t.Errorf("ConnectionsTotal = %d, want 2", stats.ConnectionsTotal)
	}
	if stats.ActiveConnections != 1 {
		t.Errorf("ActiveConnections = %d, want 1", stats.ActiveConnections)
	}
}

func TestPrometheusMetricsText(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.IncrementCommands()
	pm.ConnectionOpened()

	text := pm.GetMetricsText()
	for _, want := range []string{
		"scpi_commands_total 1",
		"scpi_protocol_errors_total 0",
		"scpi_connections_total 1",
		"scpi_active_connections 1",
		"scpi_command_duration_seconds",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics text missing %q:\n%s", want, text)
		}
	}
}

func TestPrometheusMetricsServeHTTP(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.IncrementCommands()

	recorder := httptest.NewRecorder()
	pm.ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	if recorder.Code != 200 {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "scpi_commands_total 1") {
		t.Errorf("body missing commands counter:\n%s", recorder.Body.String())
	}
}

func TestNullMetricsIsSafe(t *testing.T) {
	var collector Collector = NewNullMetrics()
	collector.IncrementCommands()
	collector.IncrementProtocolErrors()
	collector.ConnectionOpened()
	collector.ConnectionClosed()
	collector.ObserveCommandDuration(time.Second)
}
