package enforce

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fairgov/governor/pkg/domain"
)

// recordingMetrics captures recorder calls for assertions.
type recordingMetrics struct {
	mu           sync.Mutex
	violations   map[string]int
	activeKinds  map[string]int
	observations int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		violations:  make(map[string]int),
		activeKinds: make(map[string]int),
	}
}

func (r *recordingMetrics) IncViolation(violationType, severity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations[violationType+"/"+severity]++
}

func (r *recordingMetrics) IncActivePolicies(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeKinds[kind]++
}

func (r *recordingMetrics) ObserveEnforcementLatency(string, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations++
}

func (r *recordingMetrics) IncRemediation(string, string) {}
func (r *recordingMetrics) IncWatchEvent(string)          {}

func TestEnforceAll_IsolatesSingleFailure(t *testing.T) {
	adapter := newFakeAdapter()
	coordinator := NewCoordinator(NewEnforcer(adapter, nil), domain.ModeActive, nil, nil)

	policies := []domain.PolicyDocument{
		networkPolicy("a", "default"),
		{Kind: "Unknown", Name: "", Namespace: "default"},
		networkPolicy("c", "default"),
	}

	summary := coordinator.EnforceAll(context.Background(), policies, "default")

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, domain.PolicyIdentity{Kind: "Unknown", Namespace: "default", Name: ""}, summary.Failures[0].Identity)
	assert.Equal(t, "missing name", summary.Failures[0].Detail)
}

func TestEnforceAll_FailureOrderIsDeterministic(t *testing.T) {
	policies := []domain.PolicyDocument{
		{Kind: "Unknown", Name: "", Namespace: "default"},
		networkPolicy("b", "default"),
		{Kind: "", Name: "no-kind", Namespace: "default"},
		networkPolicy("d", "default"),
		{Kind: "Unknown", Name: "", Namespace: "other"},
	}

	var previous []domain.EnforcementFailure
	for run := 0; run < 20; run++ {
		adapter := newFakeAdapter()
		coordinator := NewCoordinator(NewEnforcer(adapter, nil), domain.ModeActive, nil, nil)
		summary := coordinator.EnforceAll(context.Background(), policies, "default")

		require.Equal(t, 3, summary.Failed)
		if previous != nil {
			assert.Equal(t, previous, summary.Failures, "run %d produced a different failure order", run)
		}
		previous = summary.Failures
	}
}

func TestEnforceAll_SimulatedModeTouchesNothing(t *testing.T) {
	adapter := newFakeAdapter()
	coordinator := NewCoordinator(NewEnforcer(adapter, nil), domain.ModeSimulated, nil, nil)

	policies := []domain.PolicyDocument{
		networkPolicy("a", "default"),
		networkPolicy("b", "nonexistent-namespace"),
	}

	summary := coordinator.EnforceAll(context.Background(), policies, "default")

	assert.Equal(t, 2, summary.Successful)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 0, adapter.reads)
	assert.Equal(t, 0, adapter.mutationCount())
}

func TestEnforceAll_RecordsMetricsPerOutcome(t *testing.T) {
	adapter := newFakeAdapter()
	metrics := newRecordingMetrics()
	coordinator := NewCoordinator(NewEnforcer(adapter, nil), domain.ModeActive, metrics, nil)

	policies := []domain.PolicyDocument{
		networkPolicy("a", "default"),
		{Kind: "Unknown", Name: "", Namespace: "default"},
	}
	coordinator.EnforceAll(context.Background(), policies, "default")

	assert.Equal(t, 1, metrics.activeKinds["NetworkPolicy"])
	assert.Equal(t, 1, metrics.violations["Unknown/error"])
	assert.Equal(t, 2, metrics.observations)
}

func TestEnforceAll_EmptyInput(t *testing.T) {
	coordinator := NewCoordinator(NewEnforcer(newFakeAdapter(), nil), domain.ModeActive, nil, nil)
	summary := coordinator.EnforceAll(context.Background(), nil, "default")

	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Successful)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.Failures)
}

// Counts always reconcile: successful + failed == total, and the failures
// list matches the invalid documents in input order.
func TestEnforceAll_CountsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		valid := rapid.SliceOfN(rapid.Bool(), 0, 30).Draw(t, "valid")

		policies := make([]domain.PolicyDocument, len(valid))
		var wantFailures []domain.PolicyIdentity
		for i, ok := range valid {
			if ok {
				policies[i] = networkPolicy(fmt.Sprintf("policy-%d", i), "default")
			} else {
				policies[i] = domain.PolicyDocument{Kind: "Unknown", Namespace: "default"}
				wantFailures = append(wantFailures, policies[i].Identity())
			}
		}

		adapter := newFakeAdapter()
		coordinator := NewCoordinator(NewEnforcer(adapter, nil), domain.ModeActive, nil, nil)
		summary := coordinator.EnforceAll(context.Background(), policies, "default")

		if summary.Successful+summary.Failed != summary.Total {
			t.Fatalf("counts do not reconcile: %d + %d != %d", summary.Successful, summary.Failed, summary.Total)
		}
		if len(summary.Failures) != len(wantFailures) {
			t.Fatalf("expected %d failures, got %d", len(wantFailures), len(summary.Failures))
		}
		for i, failure := range summary.Failures {
			if failure.Identity != wantFailures[i] {
				t.Fatalf("failure %d: expected %v, got %v", i, wantFailures[i], failure.Identity)
			}
		}
	})
}
