package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairgov/governor/pkg/domain"
)

// flakyAdapter fails the first n calls per operation, then succeeds.
type flakyAdapter struct {
	mu       sync.Mutex
	failures int
	calls    int
	err      error
}

func (f *flakyAdapter) attempt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *flakyAdapter) ReadResource(context.Context, domain.KindRoute, string, string) (domain.Resource, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return domain.Resource{}, nil
}

func (f *flakyAdapter) CreateResource(context.Context, domain.KindRoute, string, domain.Resource) error {
	return f.attempt()
}

func (f *flakyAdapter) ReplaceResource(context.Context, domain.KindRoute, string, string, domain.Resource) error {
	return f.attempt()
}

func (f *flakyAdapter) PatchResource(context.Context, domain.KindRoute, string, string, domain.Resource) error {
	return f.attempt()
}

func (f *flakyAdapter) ScaleResource(context.Context, domain.ScaleTarget) error {
	return f.attempt()
}

func (f *flakyAdapter) WatchViolations(context.Context) (<-chan domain.Violation, error) {
	ch := make(chan domain.Violation)
	close(ch)
	return ch, nil
}

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:        maxRetries,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryingAdapter_RecoversFromTransientFailures(t *testing.T) {
	inner := &flakyAdapter{failures: 2, err: errors.New("connection refused")}
	adapter := NewRetryingAdapter(inner, fastRetryConfig(3), nil)

	err := adapter.CreateResource(context.Background(), domain.ResolveKindRoute("QuotaPolicy"), "default", domain.Resource{})
	require.NoError(t, err)
	assert.Equal(t, 3, inner.callCount())
}

func TestRetryingAdapter_ExhaustsRetries(t *testing.T) {
	inner := &flakyAdapter{failures: 10, err: errors.New("connection refused")}
	adapter := NewRetryingAdapter(inner, fastRetryConfig(2), nil)

	err := adapter.ScaleResource(context.Background(), domain.ScaleTarget{Kind: domain.ScaleDeployment, Name: "api", Replicas: 1})
	require.Error(t, err)
	assert.Equal(t, 3, inner.callCount(), "initial call plus two retries")
}

func TestRetryingAdapter_NotFoundPassesThroughImmediately(t *testing.T) {
	inner := &flakyAdapter{failures: 10, err: fmt.Errorf("lookup: %w", ErrNotFound)}
	adapter := NewRetryingAdapter(inner, fastRetryConfig(3), nil)

	_, err := adapter.ReadResource(context.Background(), domain.ResolveKindRoute("NetworkPolicy"), "default", "absent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, inner.callCount(), "semantic answers are never retried")
}

func TestRetryingAdapter_NonTransientErrorNotRetried(t *testing.T) {
	inner := &flakyAdapter{failures: 10, err: errors.New("PUT /x returned status 403: forbidden")}
	adapter := NewRetryingAdapter(inner, fastRetryConfig(3), nil)

	err := adapter.ReplaceResource(context.Background(), domain.ResolveKindRoute("NetworkPolicy"), "default", "deny-all", domain.Resource{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.callCount())
}

func TestRetryingAdapter_CancellationStopsRetries(t *testing.T) {
	inner := &flakyAdapter{failures: 100, err: errors.New("timeout")}
	config := fastRetryConfig(50)
	config.InitialBackoff = 50 * time.Millisecond
	adapter := NewRetryingAdapter(inner, config, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := adapter.PatchResource(ctx, domain.ResolveKindRoute("QuotaPolicy"), "default", "q", domain.Resource{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	assert.True(t, IsTransient(errors.New("GET /x returned status 503: unavailable")))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(ErrNotFound))
	assert.False(t, IsTransient(errors.New("POST /x returned status 422: invalid spec")))
	assert.False(t, IsTransient(nil))
}
