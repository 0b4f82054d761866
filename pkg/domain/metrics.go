package domain

// MetricsRecorder is the observability sink consumed by the coordinator and
// the violation watcher. Implementations must be safe for concurrent use;
// instruments are created once at construction, never redefined per call.
type MetricsRecorder interface {
	// IncViolation counts a violation observation by type and severity. The
	// coordinator also uses it with severity "error" for failed enforcements.
	IncViolation(violationType string, severity string)

	// IncActivePolicies bumps the active-policy gauge for a policy kind.
	IncActivePolicies(kind string)

	// ObserveEnforcementLatency records the wall-clock duration of one
	// enforcement call, keyed by policy kind.
	ObserveEnforcementLatency(kind string, seconds float64)

	// IncRemediation counts a remediation attempt by action and status.
	IncRemediation(action string, status string)

	// IncWatchEvent counts a violation-watcher state transition.
	IncWatchEvent(state string)
}

// NopMetrics discards all observations. Components fall back to it when no
// recorder is injected.
type NopMetrics struct{}

func (NopMetrics) IncViolation(string, string)               {}
func (NopMetrics) IncActivePolicies(string)                  {}
func (NopMetrics) ObserveEnforcementLatency(string, float64) {}
func (NopMetrics) IncRemediation(string, string)             {}
func (NopMetrics) IncWatchEvent(string)                      {}
