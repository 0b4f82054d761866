package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairgov/governor/pkg/cluster"
	"github.com/fairgov/governor/pkg/config"
	"github.com/fairgov/governor/pkg/domain"
	"github.com/fairgov/governor/pkg/enforce"
	"github.com/fairgov/governor/pkg/logging"
	"github.com/fairgov/governor/pkg/store"
	"github.com/fairgov/governor/pkg/telemetry"
	"github.com/fairgov/governor/pkg/watch"
)

// controller bundles the wired components shared by the CLI commands.
type controller struct {
	cfg         *config.Config
	logger      *slog.Logger
	loader      *store.Loader
	documents   *store.MemoryStore
	adapter     cluster.TargetAdapter
	coordinator *enforce.Coordinator
	dispatcher  *watch.Dispatcher
	watcher     *watch.Watcher
	metrics     *telemetry.Metrics
}

// setup parses the shared flags and loads config plus logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, nil, err
	}
	pretty, err := cmd.Flags().GetBool("pretty")
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(logging.Config{Level: logLevel, Pretty: pretty})
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildController wires the store, adapter, coordinator, dispatcher, and
// watcher. Adapter construction is the explicit two-step: probe the target,
// then select the enforcement mode from the typed result.
func buildController(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*controller, error) {
	linter, err := store.NewLinter(ctx)
	if err != nil {
		return nil, fmt.Errorf("build admission linter: %w", err)
	}
	loader := store.NewLoader(cfg.DefaultNamespace, linter, logger)

	adapter, mode, err := selectAdapter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewMetrics()
	enforcer := enforce.NewEnforcer(adapter, logger)
	coordinator := enforce.NewCoordinator(enforcer, mode, metrics, logger)
	dispatcher := watch.NewDispatcher(enforcer, adapter, cfg.DefaultNamespace, metrics, logger)
	watcher := watch.NewWatcher(dispatcher, metrics, logger)

	return &controller{
		cfg:         cfg,
		logger:      logger,
		loader:      loader,
		documents:   store.NewMemoryStore(),
		adapter:     adapter,
		coordinator: coordinator,
		dispatcher:  dispatcher,
		watcher:     watcher,
		metrics:     metrics,
	}, nil
}

// selectAdapter initialises the active adapter when configured, downgrading
// to simulation on a failed probe unless the config forbids it. The downgrade
// is logged once at startup and never retried.
func selectAdapter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cluster.TargetAdapter, domain.EnforcementMode, error) {
	if cfg.Mode == domain.ModeSimulated {
		return cluster.NewSimulatedAdapter(logger), domain.ModeSimulated, nil
	}

	adapter, err := cluster.NewHTTPAdapter(ctx, cluster.HTTPAdapterConfig{
		BaseURL: cfg.Target.BaseURL,
		Token:   cfg.Target.Token,
		Logger:  logger,
	})
	if err != nil {
		if cfg.RequireTarget {
			return nil, "", fmt.Errorf("target unreachable and simulation fallback disabled: %w", err)
		}
		logger.Warn("target initialisation failed, downgrading to simulated mode", "error", err)
		return cluster.NewSimulatedAdapter(logger), domain.ModeSimulated, nil
	}

	logger.Info("target adapter initialised", "base_url", cfg.Target.BaseURL)

	retryConfig := cluster.DefaultRetryConfig()
	if cfg.Target.MaxRetries > 0 {
		retryConfig.MaxRetries = cfg.Target.MaxRetries
	}
	return cluster.NewRetryingAdapter(adapter, retryConfig, logger), domain.ModeActive, nil
}

// startMetricsServer serves the Prometheus scrape endpoint and a health
// probe, wrapped in OpenTelemetry HTTP instrumentation.
func startMetricsServer(addr string, metrics *telemetry.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(mux, "governor.metrics"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("metrics server listening", "addr", addr)
	return server
}
