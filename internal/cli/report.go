package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-tribunal/internal/config"
	"github.com/ahrav/go-tribunal/internal/report"
	"github.com/ahrav/go-tribunal/internal/results"
)

func newReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarize persisted verdicts",
		Long:  "Reads the results database and prints the harm distribution, escalation patterns, and rater agreement.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store, err := results.NewStore(cfg.ResultsPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			set, err := cfg.DimensionSet()
			if err != nil {
				return err
			}

			report.Render(os.Stdout, report.Build(records), set)
			return nil
		},
	}
}
