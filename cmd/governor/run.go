package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fairgov/governor/pkg/domain"
	"github.com/fairgov/governor/pkg/store"
	"github.com/fairgov/governor/pkg/telemetry"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Enforce all policies, then watch for violations until terminated",
		RunE:  runController,
	}
}

func runController(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	shutdownTelemetry, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "governor",
		Endpoint:    cfg.Telemetry.Endpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	ctrl, err := buildController(ctx, cfg, logger)
	if err != nil {
		return err
	}

	metricsServer := startMetricsServer(cfg.MetricsAddr, ctrl.metrics, logger)

	// Initial enforcement pass.
	policies, err := ctrl.loader.LoadAll(ctx, cfg.PolicyDir)
	if err != nil {
		return err
	}
	ctrl.documents.Replace(policies)
	logSummary(logger, ctrl.coordinator.EnforceAll(ctx, ctrl.documents.List(), cfg.DefaultNamespace))

	// Re-enforce whenever the policy directory changes.
	policyWatcher, err := store.NewWatcher(cfg.PolicyDir, ctrl.loader, logger)
	if err != nil {
		return fmt.Errorf("watch policy directory: %w", err)
	}
	defer func() {
		if err := policyWatcher.Close(); err != nil {
			logger.Error("policy watcher close failed", "error", err)
		}
	}()
	go func() {
		for documents := range policyWatcher.Subscribe() {
			ctrl.documents.Replace(documents)
			logSummary(logger, ctrl.coordinator.EnforceAll(ctx, ctrl.documents.List(), cfg.DefaultNamespace))
		}
	}()

	// Violation watch loop. Stream end without error means the target closed
	// the watch; the controller keeps serving metrics until terminated.
	go func() {
		events, err := ctrl.adapter.WatchViolations(ctx)
		if err != nil {
			logger.Error("violation watch unavailable", "error", err)
			return
		}
		if err := ctrl.watcher.Watch(ctx, events); err != nil && ctx.Err() == nil {
			logger.Error("violation watch terminated", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
	return nil
}

func logSummary(logger *slog.Logger, summary domain.EnforcementSummary) {
	logger.Info("enforcement summary",
		"pass_id", summary.PassID,
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed)
	for _, failure := range summary.Failures {
		logger.Error("policy enforcement failure",
			"pass_id", summary.PassID,
			"policy", failure.Identity.String(),
			"detail", failure.Detail)
	}
}
