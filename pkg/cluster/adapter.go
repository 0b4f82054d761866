// Package cluster provides adapters to the managed target system. The
// governance core only depends on the TargetAdapter capability; concrete
// adapters translate it into real API calls (HTTPAdapter) or log intent
// without side effects (SimulatedAdapter).
package cluster

import (
	"context"
	"errors"

	"github.com/fairgov/governor/pkg/domain"
)

// ErrNotFound is returned when the named resource does not exist in the
// target system. Enforcement treats it as "create instead of update"; every
// other adapter error propagates as a failure.
var ErrNotFound = errors.New("resource not found")

// TargetAdapter exposes the target-system operations the controller needs.
// Implementations must be safe for concurrent use: the coordinator fans out
// enforcement calls against a single shared adapter instance.
type TargetAdapter interface {
	// ReadResource fetches the named resource, or ErrNotFound.
	ReadResource(ctx context.Context, route domain.KindRoute, namespace, name string) (domain.Resource, error)

	// CreateResource creates a new resource in the namespace.
	CreateResource(ctx context.Context, route domain.KindRoute, namespace string, resource domain.Resource) error

	// ReplaceResource fully replaces the named resource.
	ReplaceResource(ctx context.Context, route domain.KindRoute, namespace, name string, resource domain.Resource) error

	// PatchResource merge-patches the named resource, or ErrNotFound.
	PatchResource(ctx context.Context, route domain.KindRoute, namespace, name string, resource domain.Resource) error

	// ScaleResource sets the replica count of a workload. This is a blind
	// set, not a compare-and-set.
	ScaleResource(ctx context.Context, target domain.ScaleTarget) error

	// WatchViolations opens the violation event stream. The channel closes
	// when the upstream stream ends; the stream is not restartable, a new
	// call is required after stream end.
	WatchViolations(ctx context.Context) (<-chan domain.Violation, error)
}
