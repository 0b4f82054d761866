package cluster

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/fairgov/governor/pkg/domain"
)

// SimulatedAdapter records what enforcement would have done without touching
// any target system. It is the adapter behind simulated mode and the startup
// fallback when the active adapter cannot be initialised.
type SimulatedAdapter struct {
	logger *slog.Logger

	reads    atomic.Int64
	creates  atomic.Int64
	replaces atomic.Int64
	patches  atomic.Int64
	scales   atomic.Int64
}

// NewSimulatedAdapter builds a side-effect-free adapter that logs intent.
func NewSimulatedAdapter(logger *slog.Logger) *SimulatedAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulatedAdapter{logger: logger}
}

// ReadResource always reports the resource as absent.
func (a *SimulatedAdapter) ReadResource(_ context.Context, route domain.KindRoute, namespace, name string) (domain.Resource, error) {
	a.reads.Add(1)
	a.logger.Debug("simulated read", "plural", route.Plural, "namespace", namespace, "name", name)
	return nil, ErrNotFound
}

// CreateResource logs the intended creation.
func (a *SimulatedAdapter) CreateResource(_ context.Context, route domain.KindRoute, namespace string, _ domain.Resource) error {
	a.creates.Add(1)
	a.logger.Debug("simulated create", "plural", route.Plural, "namespace", namespace)
	return nil
}

// ReplaceResource logs the intended replacement.
func (a *SimulatedAdapter) ReplaceResource(_ context.Context, route domain.KindRoute, namespace, name string, _ domain.Resource) error {
	a.replaces.Add(1)
	a.logger.Debug("simulated replace", "plural", route.Plural, "namespace", namespace, "name", name)
	return nil
}

// PatchResource logs the intended patch.
func (a *SimulatedAdapter) PatchResource(_ context.Context, route domain.KindRoute, namespace, name string, _ domain.Resource) error {
	a.patches.Add(1)
	a.logger.Debug("simulated patch", "plural", route.Plural, "namespace", namespace, "name", name)
	return nil
}

// ScaleResource logs the intended scaling.
func (a *SimulatedAdapter) ScaleResource(_ context.Context, target domain.ScaleTarget) error {
	a.scales.Add(1)
	a.logger.Debug("simulated scale",
		"kind", string(target.Kind),
		"namespace", target.Namespace,
		"name", target.Name,
		"replicas", target.Replicas)
	return nil
}

// WatchViolations returns an already-closed stream; without a target system
// there is nothing to observe.
func (a *SimulatedAdapter) WatchViolations(context.Context) (<-chan domain.Violation, error) {
	ch := make(chan domain.Violation)
	close(ch)
	return ch, nil
}

// Mutations reports how many state-changing calls were issued. Simulation
// safety tests assert this stays zero on the enforcement path.
func (a *SimulatedAdapter) Mutations() int64 {
	return a.creates.Load() + a.replaces.Load() + a.patches.Load() + a.scales.Load()
}

// Reads reports how many read calls were issued.
func (a *SimulatedAdapter) Reads() int64 {
	return a.reads.Load()
}
