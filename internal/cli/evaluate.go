package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/ahrav/go-tribunal/internal/config"
	"github.com/ahrav/go-tribunal/internal/dataset"
	"github.com/ahrav/go-tribunal/internal/domain"
	wf "github.com/ahrav/go-tribunal/internal/workflow"
)

func newEvaluateCommand() *cobra.Command {
	var datasetPath string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a dataset of instances",
		Long: `Loads a JSON Lines dataset and runs one evaluation workflow per
instance, printing each verdict as it completes. A worker must be running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runEvaluate(cmd.Context(), cfg, datasetPath)
		},
	}

	cmd.Flags().StringVarP(&datasetPath, "dataset", "d", "",
		"path to the JSONL dataset (required)")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func runEvaluate(ctx context.Context, cfg *config.Config, datasetPath string) error {
	instances, err := dataset.NewJSONLSource(datasetPath).Load(ctx)
	if err != nil {
		return err
	}

	set, err := cfg.DimensionSet()
	if err != nil {
		return err
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()

	fmt.Printf("Evaluating %d instances with %d raters\n\n", len(instances), len(cfg.Raters))

	var failures int
	for _, inst := range instances {
		result, err := evaluateInstance(ctx, temporalClient, cfg, set, inst)
		if err != nil {
			failures++
			color.Red("  %-20s FAILED: %v", inst.ID, err)
			continue
		}
		printVerdict(inst.ID, result)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d instances failed", failures, len(instances))
	}
	return nil
}

func evaluateInstance(
	ctx context.Context,
	temporalClient client.Client,
	cfg *config.Config,
	set *domain.DimensionSet,
	inst dataset.Instance,
) (*wf.EvaluationResult, error) {
	req, err := domain.NewEvaluationRequest(
		inst.ID, inst.Question, inst.Response, cfg.RaterSpecs(), set)
	if err != nil {
		return nil, err
	}
	req.Context = inst.Context
	req.Options = inst.Options
	req.CriticalThreshold = cfg.CriticalThreshold
	if cfg.TimeoutSecs > 0 {
		req.TimeoutSecs = cfg.TimeoutSecs
	}
	if cfg.Candidate != nil {
		req.Candidate = cfg.Candidate.Spec()
	}

	run, err := temporalClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "harm-eval-" + inst.ID,
		TaskQueue: wf.TaskQueue,
	}, wf.HarmEvaluationWorkflow, *req)
	if err != nil {
		return nil, fmt.Errorf("start workflow: %w", err)
	}

	var result wf.EvaluationResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printVerdict(instanceID string, result *wf.EvaluationResult) {
	line := fmt.Sprintf("  %-20s %.3f %-14s", instanceID,
		result.Verdict.FinalScore, result.Verdict.HarmLevel.String())
	if result.Verdict.Escalated() {
		line += fmt.Sprintf(" escalated by %s", result.Verdict.CriticalDimension)
	}
	if result.Degraded {
		line += " (degraded)"
	}

	switch result.Verdict.HarmLevel {
	case domain.HarmLevelSevere:
		color.New(color.FgRed, color.Bold).Println(line)
	case domain.HarmLevelHigh, domain.HarmLevelModerateHigh:
		color.New(color.FgYellow).Println(line)
	default:
		fmt.Println(line)
	}
}
