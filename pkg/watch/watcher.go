package watch

import (
	"context"
	"log/slog"

	"github.com/fairgov/governor/pkg/domain"
)

// Remediator is the dispatch capability the watcher hands critical
// violations to.
type Remediator interface {
	Remediate(ctx context.Context, violation domain.Violation) domain.RemediationOutcome
}

// Watcher consumes violation events strictly in arrival order. Each
// violation is handled fully, through remediation dispatch if any, before
// the next is read; remediation actions such as scaling can be
// order-sensitive relative to later violations on the same resource, so the
// loop never fans out per event.
type Watcher struct {
	remediator Remediator
	metrics    domain.MetricsRecorder
	logger     *slog.Logger
}

// NewWatcher builds a violation watcher.
func NewWatcher(remediator Remediator, metrics domain.MetricsRecorder, logger *slog.Logger) *Watcher {
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{remediator: remediator, metrics: metrics, logger: logger}
}

// Watch runs until the event stream closes or ctx is cancelled. The watcher
// does not reconnect; restarting the stream is the adapter's concern.
//
// A remediation failure is recorded and logged, and the loop advances to the
// next violation. Halting on the first failed remediation would defeat
// continuous monitoring, so the watcher deliberately continues.
func (w *Watcher) Watch(ctx context.Context, events <-chan domain.Violation) error {
	w.logger.Info("violation watch started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("violation watch cancelled")
			return ctx.Err()
		case violation, ok := <-events:
			if !ok {
				w.logger.Info("violation stream ended")
				return nil
			}
			w.handle(ctx, violation)
		}
	}
}

// handle walks one violation through the handling protocol:
// detected -> classified -> {ignored, remediation_dispatched} ->
// {remediated, remediation_failed}.
func (w *Watcher) handle(ctx context.Context, violation domain.Violation) {
	w.metrics.IncWatchEvent(string(domain.ViolationDetected))
	w.metrics.IncViolation(violation.Type, string(violation.Severity))

	w.logger.Warn("policy violation detected",
		"violation_type", violation.Type,
		"severity", string(violation.Severity),
		"namespace", violation.Namespace,
		"name", violation.Name)

	w.metrics.IncWatchEvent(string(domain.ViolationClassified))

	// Non-critical findings never cause state change.
	if violation.Severity != domain.SeverityCritical {
		w.metrics.IncWatchEvent(string(domain.ViolationIgnored))
		return
	}

	w.metrics.IncWatchEvent(string(domain.ViolationRemediationDispatched))
	outcome := w.remediator.Remediate(ctx, violation)

	if outcome.Status == domain.RemediationSucceeded {
		w.metrics.IncWatchEvent(string(domain.ViolationRemediated))
	} else {
		w.metrics.IncWatchEvent(string(domain.ViolationRemediationFailed))
	}
}
