package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fairgov/governor/pkg/store"
)

func newEnforceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enforce",
		Short: "Run a single enforcement pass and print the summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()

			ctrl, err := buildController(ctx, cfg, logger)
			if err != nil {
				return err
			}

			policies, err := ctrl.loader.LoadAll(ctx, cfg.PolicyDir)
			if err != nil {
				return err
			}
			ctrl.documents.Replace(policies)

			summary := ctrl.coordinator.EnforceAll(ctx, ctrl.documents.List(), cfg.DefaultNamespace)

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(summary); err != nil {
				return err
			}

			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d policies failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and lint policy documents without enforcing them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()

			linter, err := store.NewLinter(ctx)
			if err != nil {
				return err
			}
			loader := store.NewLoader(cfg.DefaultNamespace, linter, logger)

			documents, err := loader.LoadAll(ctx, cfg.PolicyDir)
			if err != nil {
				return err
			}

			invalid := 0
			for _, doc := range documents {
				if doc.LintError != "" {
					invalid++
					fmt.Printf("FAIL  %s: %s\n", doc.Identity(), doc.LintError)
					continue
				}
				if err := doc.Validate(); err != nil {
					invalid++
					fmt.Printf("FAIL  %s: %v\n", doc.Identity(), err)
					continue
				}
				fmt.Printf("OK    %s\n", doc.Identity())
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d documents failed validation", invalid, len(documents))
			}
			return nil
		},
	}
}
