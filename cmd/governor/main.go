// Package main is the entry point for the governor binary: the policy
// governance controller that enforces declarative policies against a target
// cluster and remediates critical violations in real time.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "governor.yaml"
	defaultLogLevel   = "info"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "governor",
		Short: "Policy governance controller",
		Long: `governor loads declarative policy documents, enforces them against a
target cluster, watches for policy violations in real time, and dispatches
automated remediation for critical findings.

In simulated mode enforcement is computed but never applied, which makes it
safe to run against production configuration.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", defaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "Enable pretty console logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newEnforceCmd())
	rootCmd.AddCommand(newValidateCmd())

	return rootCmd
}
