package enforce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairgov/governor/pkg/domain"
	"github.com/fairgov/governor/pkg/telemetry"
)

// Coordinator runs one enforcement operation per policy, all concurrently
// against the same adapter, and aggregates the outcomes. A failure in one
// operation never cancels or blocks the others; the summary is only built
// after every operation has resolved.
type Coordinator struct {
	enforcer *Enforcer
	mode     domain.EnforcementMode
	metrics  domain.MetricsRecorder
	logger   *slog.Logger
}

// NewCoordinator builds a coordinator with a fixed enforcement mode.
func NewCoordinator(enforcer *Enforcer, mode domain.EnforcementMode, metrics domain.MetricsRecorder, logger *slog.Logger) *Coordinator {
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		enforcer: enforcer,
		mode:     mode,
		metrics:  metrics,
		logger:   logger,
	}
}

// Mode reports the enforcement mode the coordinator was built with.
func (c *Coordinator) Mode() domain.EnforcementMode {
	return c.mode
}

// EnforceAll enforces every policy into the namespace and returns the
// aggregate summary. Outcomes are collected per policy: an error in one
// enforcement is captured as a failed outcome without disturbing its
// siblings, and the failures list preserves input order so repeated runs
// over the same input are deterministic.
//
// Cancelling ctx is best-effort: in-flight enforcements observe the context
// through their adapter calls, and whatever resolves is still counted.
func (c *Coordinator) EnforceAll(ctx context.Context, policies []domain.PolicyDocument, namespace string) domain.EnforcementSummary {
	passID := uuid.NewString()
	tracer := otel.Tracer("governor/enforce")
	ctx, span := tracer.Start(ctx, "governance.enforce_all")
	defer span.End()

	c.logger.Info("starting enforcement pass",
		"pass_id", passID,
		"policies", len(policies),
		"namespace", namespace,
		"mode", string(c.mode))

	outcomes := make([]domain.EnforcementOutcome, len(policies))

	var wg sync.WaitGroup
	for i, policy := range policies {
		wg.Add(1)
		go func(i int, policy domain.PolicyDocument) {
			defer wg.Done()
			outcomes[i] = c.enforceOne(ctx, policy, namespace)
		}(i, policy)
	}
	wg.Wait()

	summary := domain.EnforcementSummary{
		PassID:      passID,
		Total:       len(policies),
		CompletedAt: time.Now(),
	}
	for _, outcome := range outcomes {
		if outcome.Status == domain.StatusFailed {
			summary.Failed++
			summary.Failures = append(summary.Failures, domain.EnforcementFailure{
				Identity: outcome.Identity,
				Detail:   outcome.ErrorDetail,
			})
		} else {
			summary.Successful++
		}
	}

	span.SetAttributes(
		attribute.String("governance.pass_id", passID),
		attribute.Int("governance.policies.total", summary.Total),
		attribute.Int("governance.policies.failed", summary.Failed),
	)

	c.logger.Info("enforcement pass complete",
		"pass_id", passID,
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed)

	return summary
}

func (c *Coordinator) enforceOne(ctx context.Context, policy domain.PolicyDocument, namespace string) domain.EnforcementOutcome {
	outcome := c.enforcer.Enforce(ctx, policy, namespace, c.mode)

	c.metrics.ObserveEnforcementLatency(policy.Kind, outcome.Duration.Seconds())
	if outcome.Status == domain.StatusFailed {
		c.metrics.IncViolation(policy.Kind, "error")
	} else {
		c.metrics.IncActivePolicies(policy.Kind)
	}

	telemetry.RecordEnforcement(ctx, telemetry.EnforcementMetrics{
		Kind:     policy.Kind,
		Status:   string(outcome.Status),
		Duration: outcome.Duration,
	})

	return outcome
}
