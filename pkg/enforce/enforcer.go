// Package enforce applies policy documents to the target system. The
// Enforcer handles one document; the Coordinator fans out a whole set
// concurrently and aggregates the outcomes.
package enforce

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fairgov/governor/pkg/cluster"
	"github.com/fairgov/governor/pkg/domain"
)

// Enforcer applies a single policy document via the target adapter.
// Enforcement is an idempotent create-or-replace: applying the same document
// twice with no external change yields the same end state and a success
// outcome both times.
type Enforcer struct {
	adapter cluster.TargetAdapter
	logger  *slog.Logger
}

// NewEnforcer builds an enforcer over the shared target adapter.
func NewEnforcer(adapter cluster.TargetAdapter, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{adapter: adapter, logger: logger}
}

// Enforce applies one policy into the given namespace. An empty namespace
// falls back to the document's own namespace field.
//
// In simulated mode no adapter call is made and the outcome is always
// StatusSimulated. In active mode a validation or adapter error produces a
// StatusFailed outcome with the error captured verbatim; retries are the
// coordinator's concern, not handled here.
func (e *Enforcer) Enforce(ctx context.Context, policy domain.PolicyDocument, namespace string, mode domain.EnforcementMode) domain.EnforcementOutcome {
	start := time.Now()
	if namespace == "" {
		namespace = policy.Namespace
	}
	identity := domain.PolicyIdentity{Kind: policy.Kind, Namespace: namespace, Name: policy.Name}

	if mode == domain.ModeSimulated {
		e.logger.Info("simulated enforcement",
			"kind", policy.Kind, "name", policy.Name, "namespace", namespace)
		return domain.EnforcementOutcome{
			Identity:  identity,
			Status:    domain.StatusSimulated,
			Timestamp: time.Now(),
			Duration:  time.Since(start),
		}
	}

	if err := policy.Validate(); err != nil {
		return failed(identity, start, err.Error())
	}
	if policy.LintError != "" {
		return failed(identity, start, "admission lint rejected document: "+policy.LintError)
	}

	route := policy.Route
	if route.Class == domain.RouteUnresolved {
		route = domain.ResolveKindRoute(policy.Kind)
	}

	var err error
	switch route.Class {
	case domain.RouteNetworkPolicy:
		err = e.applyNetworkPolicy(ctx, route, policy, namespace)
	default:
		err = e.applyGeneric(ctx, route, policy, namespace)
	}
	if err != nil {
		e.logger.Error("enforcement failed",
			"kind", policy.Kind, "name", policy.Name, "namespace", namespace, "error", err)
		return failed(identity, start, err.Error())
	}

	e.logger.Info("policy enforced",
		"kind", policy.Kind, "name", policy.Name, "namespace", namespace)
	return domain.EnforcementOutcome{
		Identity:  identity,
		Status:    domain.StatusSuccess,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
}

// applyNetworkPolicy reads the named resource and fully replaces it, or
// creates it when absent.
func (e *Enforcer) applyNetworkPolicy(ctx context.Context, route domain.KindRoute, policy domain.PolicyDocument, namespace string) error {
	manifest := policy.Manifest()

	_, err := e.adapter.ReadResource(ctx, route, namespace, policy.Name)
	switch {
	case errors.Is(err, cluster.ErrNotFound):
		return e.adapter.CreateResource(ctx, route, namespace, manifest)
	case err != nil:
		return err
	default:
		return e.adapter.ReplaceResource(ctx, route, namespace, policy.Name, manifest)
	}
}

// applyGeneric merge-patches the named custom resource, or creates it when
// absent.
func (e *Enforcer) applyGeneric(ctx context.Context, route domain.KindRoute, policy domain.PolicyDocument, namespace string) error {
	manifest := policy.Manifest()

	err := e.adapter.PatchResource(ctx, route, namespace, policy.Name, manifest)
	if errors.Is(err, cluster.ErrNotFound) {
		return e.adapter.CreateResource(ctx, route, namespace, manifest)
	}
	return err
}

func failed(identity domain.PolicyIdentity, start time.Time, detail string) domain.EnforcementOutcome {
	return domain.EnforcementOutcome{
		Identity:    identity,
		Status:      domain.StatusFailed,
		Timestamp:   time.Now(),
		Duration:    time.Since(start),
		ErrorDetail: detail,
	}
}
