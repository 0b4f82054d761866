// Package watch consumes the target system's violation event stream and
// dispatches automated remediation for critical violations.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairgov/governor/pkg/cluster"
	"github.com/fairgov/governor/pkg/domain"
	"github.com/fairgov/governor/pkg/enforce"
	"github.com/fairgov/governor/pkg/telemetry"
)

// Dispatcher decides, per violation, whether and how to remediate, and
// executes one of the three remediation variants. Scale and constraint
// batches use the same all-complete isolation as the coordinator: one
// failing item never aborts the remaining items.
type Dispatcher struct {
	enforcer         *enforce.Enforcer
	adapter          cluster.TargetAdapter
	metrics          domain.MetricsRecorder
	defaultNamespace string
	logger           *slog.Logger
}

// NewDispatcher builds a remediation dispatcher. Constraint documents
// without a namespace fall back to defaultNamespace.
func NewDispatcher(enforcer *enforce.Enforcer, adapter cluster.TargetAdapter, defaultNamespace string, metrics domain.MetricsRecorder, logger *slog.Logger) *Dispatcher {
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		enforcer:         enforcer,
		adapter:          adapter,
		metrics:          metrics,
		defaultNamespace: defaultNamespace,
		logger:           logger,
	}
}

// Remediate executes the violation's remediation spec and records exactly
// one outcome, success or failure. A critical violation without a
// remediation spec is recorded as failed, never silently dropped.
func (d *Dispatcher) Remediate(ctx context.Context, violation domain.Violation) domain.RemediationOutcome {
	dispatchID := uuid.NewString()
	tracer := otel.Tracer("governor/watch")
	ctx, span := tracer.Start(ctx, "governance.remediate")
	defer span.End()

	outcome := d.execute(ctx, dispatchID, violation)

	action := "none"
	if violation.Remediation != nil {
		action = string(violation.Remediation.Action)
	}
	span.SetAttributes(
		attribute.String("remediation.dispatch_id", dispatchID),
		attribute.String("remediation.action", action),
		attribute.String("remediation.status", string(outcome.Status)),
	)
	d.metrics.IncRemediation(action, string(outcome.Status))
	telemetry.RecordRemediation(ctx, action, string(outcome.Status))

	if outcome.Status == domain.RemediationFailed {
		d.logger.Error("remediation failed",
			"dispatch_id", dispatchID,
			"violation_type", violation.Type,
			"action", action,
			"detail", outcome.Detail)
	} else {
		d.logger.Info("remediation completed",
			"dispatch_id", dispatchID,
			"violation_type", violation.Type,
			"action", action)
	}

	return outcome
}

func (d *Dispatcher) execute(ctx context.Context, dispatchID string, violation domain.Violation) domain.RemediationOutcome {
	spec := violation.Remediation
	if spec == nil {
		return failedOutcome(dispatchID, fmt.Sprintf(
			"critical violation %s/%s has no remediation spec", violation.Namespace, violation.Name))
	}

	switch spec.Action {
	case domain.RemediationUpdatePolicy:
		return d.updatePolicy(ctx, dispatchID, spec, violation)
	case domain.RemediationScaleResources:
		return d.scaleResources(ctx, dispatchID, spec.Targets)
	case domain.RemediationApplyConstraints:
		return d.applyConstraints(ctx, dispatchID, spec.Constraints)
	default:
		return failedOutcome(dispatchID, fmt.Sprintf("unknown remediation action %q", spec.Action))
	}
}

func (d *Dispatcher) updatePolicy(ctx context.Context, dispatchID string, spec *domain.RemediationSpec, violation domain.Violation) domain.RemediationOutcome {
	if spec.Policy == nil {
		return failedOutcome(dispatchID, "update_policy remediation carries no policy document")
	}

	outcome := d.enforcer.Enforce(ctx, *spec.Policy, violation.Namespace, domain.ModeActive)
	if outcome.Status == domain.StatusFailed {
		return failedOutcome(dispatchID, outcome.ErrorDetail)
	}
	return succeededOutcome(dispatchID)
}

// scaleResources blindly sets replicas on each target. Reading the current
// replica count first would not close the race with other controllers, so
// the set is intentionally unconditional.
func (d *Dispatcher) scaleResources(ctx context.Context, dispatchID string, targets []domain.ScaleTarget) domain.RemediationOutcome {
	if len(targets) == 0 {
		return failedOutcome(dispatchID, "scale_resources remediation carries no targets")
	}

	var details []string
	for _, target := range targets {
		if err := d.adapter.ScaleResource(ctx, target); err != nil {
			details = append(details, fmt.Sprintf("%s %s/%s: %v", target.Kind, target.Namespace, target.Name, err))
			continue
		}
		d.logger.Info("scaled workload",
			"kind", string(target.Kind),
			"namespace", target.Namespace,
			"name", target.Name,
			"replicas", target.Replicas)
	}

	if len(details) > 0 {
		return failedOutcome(dispatchID, "scaling failed for "+strings.Join(details, "; "))
	}
	return succeededOutcome(dispatchID)
}

func (d *Dispatcher) applyConstraints(ctx context.Context, dispatchID string, constraints []domain.PolicyDocument) domain.RemediationOutcome {
	if len(constraints) == 0 {
		return failedOutcome(dispatchID, "apply_constraints remediation carries no constraints")
	}

	var details []string
	for _, constraint := range constraints {
		namespace := constraint.Namespace
		if namespace == "" {
			namespace = d.defaultNamespace
		}
		outcome := d.enforcer.Enforce(ctx, constraint, namespace, domain.ModeActive)
		if outcome.Status == domain.StatusFailed {
			details = append(details, fmt.Sprintf("%s: %s", outcome.Identity, outcome.ErrorDetail))
		}
	}

	if len(details) > 0 {
		return failedOutcome(dispatchID, "constraints failed: "+strings.Join(details, "; "))
	}
	return succeededOutcome(dispatchID)
}

func failedOutcome(dispatchID, detail string) domain.RemediationOutcome {
	return domain.RemediationOutcome{
		DispatchID: dispatchID,
		Status:     domain.RemediationFailed,
		Detail:     detail,
	}
}

func succeededOutcome(dispatchID string) domain.RemediationOutcome {
	return domain.RemediationOutcome{
		DispatchID: dispatchID,
		Status:     domain.RemediationSucceeded,
	}
}
