package metrics

import "time"

// Collector defines the interface for collecting server metrics. The
// abstraction allows swapping implementations (PrometheusMetrics when a
// metrics port is configured, NullMetrics otherwise) without touching the
// SCPI dispatch path.
type Collector interface {
	// IncrementCommands increments the counter of dispatched command lines
	IncrementCommands()

	// IncrementProtocolErrors increments the counter of queued SCPI errors
	IncrementProtocolErrors()

	// ConnectionOpened increments the active connection gauge and the
	// lifetime connection counter
	ConnectionOpened()

	// ConnectionClosed decrements the active connection gauge
	ConnectionClosed()

	// ObserveCommandDuration records how long one command dispatch took
	ObserveCommandDuration(duration time.Duration)
}

// Compile-time verification of the implementations
var (
	_ Collector = (*PrometheusMetrics)(nil)
	_ Collector = (*NullMetrics)(nil)
)
