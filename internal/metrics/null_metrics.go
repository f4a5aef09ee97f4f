package metrics

import "time"

// NullMetrics is a zero-overhead no-op implementation of Collector. Used when
// no metrics port is configured so the dispatch path carries no collection
// cost.
type NullMetrics struct{}

// NewNullMetrics creates a new NullMetrics instance
func NewNullMetrics() *NullMetrics {
	return &NullMetrics{}
}

// IncrementCommands is a no-op
func (nm *NullMetrics) IncrementCommands() {}

// IncrementProtocolErrors is a no-op
func (nm *NullMetrics) IncrementProtocolErrors() {}

// ConnectionOpened is a no-op
func (nm *NullMetrics) ConnectionOpened() {}

// ConnectionClosed is a no-op
func (nm *NullMetrics) ConnectionClosed() {}

// ObserveCommandDuration is a no-op
func (nm *NullMetrics) ObserveCommandDuration(duration time.Duration) {}
