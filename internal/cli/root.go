// Package cli implements the tribunal command line: running the worker,
// submitting dataset evaluations, and reporting on persisted verdicts.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// NewRootCommand builds the tribunal command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tribunal",
		Short: "Multi-dimensional harm evaluation of medical LLM responses",
		Long: `tribunal runs a jury of LLM raters over medical question/response
instances, aggregates per-dimension harm scores across raters, and applies a
critical-dimension escalation rule to reach a final harm verdict.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "tribunal.yaml",
		"path to the evaluation config file")

	root.AddCommand(newWorkerCommand())
	root.AddCommand(newEvaluateCommand())
	root.AddCommand(newReportCommand())
	return root
}

// Execute runs the CLI, exiting non-zero on error.
func Execute() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
