package session

import "time"

// Metrics receives counters from coordinators, stores and bootstrappers.
// The metrics package provides a Prometheus implementation.
type Metrics interface {
	RefreshStarted(domain string)
	RefreshFinished(domain string, err error, elapsed time.Duration)
	WaiterJoined(domain string)
	StateChanged(domain string, from, to Status)
	BootstrapFinished(domain string, status Status, transient bool)
}

type noopMetrics struct{}

func (noopMetrics) RefreshStarted(string)                        {}
func (noopMetrics) RefreshFinished(string, error, time.Duration) {}
func (noopMetrics) WaiterJoined(string)                          {}
func (noopMetrics) StateChanged(string, Status, Status)          {}
func (noopMetrics) BootstrapFinished(string, Status, bool)       {}

func normalizeMetrics(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
