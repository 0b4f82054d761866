package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	instrumentsOnce      sync.Once
	instrumentsInitErr   error
	enforcementCounter   metric.Int64Counter
	enforcementHistogram metric.Float64Histogram
	remediationCounter   metric.Int64Counter
)

// EnforcementMetrics captures the fields recorded per enforcement call.
type EnforcementMetrics struct {
	Kind     string
	Status   string
	Duration time.Duration
}

// RecordEnforcement emits the OpenTelemetry counter and histogram describing
// one enforcement call. It is a no-op when no meter provider is installed or
// instrument creation failed.
func RecordEnforcement(ctx context.Context, m EnforcementMetrics) {
	if err := ensureInstruments(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("policy.kind", m.Kind),
		attribute.String("enforcement.status", m.Status),
	}

	enforcementCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if m.Duration > 0 {
		enforcementHistogram.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}
}

// RecordRemediation emits the OpenTelemetry counter for one remediation
// attempt.
func RecordRemediation(ctx context.Context, action, status string) {
	if err := ensureInstruments(); err != nil {
		return
	}

	remediationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("remediation.action", action),
		attribute.String("remediation.status", status),
	))
}

func ensureInstruments() error {
	instrumentsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("governor.controller")

		enforcementCounter, instrumentsInitErr = meter.Int64Counter(
			"governor.enforcement.total",
			metric.WithDescription("Policy enforcements partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if instrumentsInitErr != nil {
			return
		}

		enforcementHistogram, instrumentsInitErr = meter.Float64Histogram(
			"governor.enforcement.duration_ms",
			metric.WithDescription("Observed enforcement latency"),
			metric.WithUnit("ms"),
		)
		if instrumentsInitErr != nil {
			return
		}

		remediationCounter, instrumentsInitErr = meter.Int64Counter(
			"governor.remediation.total",
			metric.WithDescription("Remediation attempts partitioned by action and status"),
			metric.WithUnit("{count}"),
		)
	})

	return instrumentsInitErr
}

// ResetInstrumentsForTest clears cached metric instruments so tests can
// reinitialize them against a fresh MeterProvider. This is intended for
// use in test code only.
func ResetInstrumentsForTest() {
	instrumentsOnce = sync.Once{}
	instrumentsInitErr = nil
	enforcementCounter = nil
	enforcementHistogram = nil
	remediationCounter = nil
}
