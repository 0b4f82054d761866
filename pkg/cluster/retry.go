package cluster

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/fairgov/governor/pkg/domain"
)

// RetryConfig controls transient-failure retries on adapter calls.
type RetryConfig struct {
	// MaxRetries is the number of retry attempts after the first call
	// (0 = no retries).
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// BackoffMultiplier is the exponential growth factor.
	BackoffMultiplier float64
	// Jitter adds up to 25% randomness to each backoff.
	Jitter bool
}

// DefaultRetryConfig returns the retry behaviour used when the configuration
// does not override it.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// RetryingAdapter wraps a TargetAdapter and retries calls that fail with
// transient errors. Non-transient errors, ErrNotFound included, pass through
// unchanged so the enforcement semantics on top stay intact. All wrapped
// operations set full state, so retrying a call that may have partially
// landed is safe.
type RetryingAdapter struct {
	inner  TargetAdapter
	config RetryConfig
	logger *slog.Logger
}

// NewRetryingAdapter wraps inner with the given retry behaviour. Zero or
// negative config fields fall back to defaults.
func NewRetryingAdapter(inner TargetAdapter, config RetryConfig, logger *slog.Logger) *RetryingAdapter {
	defaults := DefaultRetryConfig()
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = defaults.BackoffMultiplier
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingAdapter{inner: inner, config: config, logger: logger}
}

func (a *RetryingAdapter) ReadResource(ctx context.Context, route domain.KindRoute, namespace, name string) (domain.Resource, error) {
	var resource domain.Resource
	err := a.retry(ctx, "read", func() error {
		var err error
		resource, err = a.inner.ReadResource(ctx, route, namespace, name)
		return err
	})
	return resource, err
}

func (a *RetryingAdapter) CreateResource(ctx context.Context, route domain.KindRoute, namespace string, resource domain.Resource) error {
	return a.retry(ctx, "create", func() error {
		return a.inner.CreateResource(ctx, route, namespace, resource)
	})
}

func (a *RetryingAdapter) ReplaceResource(ctx context.Context, route domain.KindRoute, namespace, name string, resource domain.Resource) error {
	return a.retry(ctx, "replace", func() error {
		return a.inner.ReplaceResource(ctx, route, namespace, name, resource)
	})
}

func (a *RetryingAdapter) PatchResource(ctx context.Context, route domain.KindRoute, namespace, name string, resource domain.Resource) error {
	return a.retry(ctx, "patch", func() error {
		return a.inner.PatchResource(ctx, route, namespace, name, resource)
	})
}

func (a *RetryingAdapter) ScaleResource(ctx context.Context, target domain.ScaleTarget) error {
	return a.retry(ctx, "scale", func() error {
		return a.inner.ScaleResource(ctx, target)
	})
}

// WatchViolations is not retried; reconnecting a long-lived stream is the
// caller's lifecycle decision.
func (a *RetryingAdapter) WatchViolations(ctx context.Context) (<-chan domain.Violation, error) {
	return a.inner.WatchViolations(ctx)
}

func (a *RetryingAdapter) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt >= a.config.MaxRetries || !IsTransient(lastErr) {
			return lastErr
		}

		backoff := a.backoff(attempt)
		a.logger.Warn("retrying adapter call",
			"operation", operation,
			"attempt", attempt+1,
			"backoff", backoff.String(),
			"error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (a *RetryingAdapter) backoff(attempt int) time.Duration {
	backoff := time.Duration(float64(a.config.InitialBackoff) * math.Pow(a.config.BackoffMultiplier, float64(attempt)))
	if backoff > a.config.MaxBackoff {
		backoff = a.config.MaxBackoff
	}
	if a.config.Jitter && backoff > 0 {
		// #nosec G404 - non-cryptographic random is fine for jitter
		backoff += time.Duration(rand.Int63n(int64(backoff/4) + 1))
	}
	return backoff
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"temporary failure",
	"status 408",
	"status 429",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
}

// IsTransient reports whether an adapter error is worth retrying. ErrNotFound
// is a semantic answer, never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	message := err.Error()
	for _, pattern := range transientPatterns {
		if strings.Contains(message, pattern) {
			return true
		}
	}
	return false
}
