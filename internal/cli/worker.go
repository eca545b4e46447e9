package cli

import (
	"github.com/spf13/cobra"

	"github.com/ahrav/go-tribunal/internal/config"
	"github.com/ahrav/go-tribunal/internal/worker"
	"github.com/ahrav/go-tribunal/pkg/events"
)

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the evaluation worker",
		Long:  "Connects to Temporal and processes harm evaluation workflows until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			w, err := worker.New(worker.Options{
				TemporalHostPort: cfg.Temporal.HostPort,
				Namespace:        cfg.Temporal.Namespace,
				ResultsPath:      cfg.ResultsPath,
				LLM:              &cfg.LLM,
				Sink:             events.NewNoOpEventSink(),
			})
			if err != nil {
				return err
			}

			return w.Run()
		},
	}
}
