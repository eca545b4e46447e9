// Package worker assembles the Temporal worker: client connection, activity
// dependency wiring, and registration of the evaluation workflow.
package worker

import (
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/ahrav/go-tribunal/internal/aggregation"
	"github.com/ahrav/go-tribunal/internal/llm"
	"github.com/ahrav/go-tribunal/internal/results"
	"github.com/ahrav/go-tribunal/internal/scoring"
	wf "github.com/ahrav/go-tribunal/internal/workflow"
	"github.com/ahrav/go-tribunal/pkg/events"
)

// Options configures the worker assembly.
type Options struct {
	// TemporalHostPort is the Temporal frontend address.
	TemporalHostPort string

	// Namespace is the Temporal namespace; empty means "default".
	Namespace string

	// ResultsPath is the SQLite database file for evaluation records.
	ResultsPath string

	// LLM configures the rater client shared by generation and scoring.
	LLM *llm.Config

	// Sink receives domain events; nil disables emission.
	Sink events.EventSink
}

// Worker owns the Temporal worker and the resources it was wired with.
type Worker struct {
	temporalClient client.Client
	worker         worker.Worker
	store          *results.Store
}

// New connects to Temporal, opens the results store, and registers the
// workflow and all activities on the shared task queue.
func New(opts Options) (*Worker, error) {
	temporalClient, err := client.Dial(client.Options{
		HostPort:  opts.TemporalHostPort,
		Namespace: opts.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to temporal: %w", err)
	}

	store, err := results.NewStore(opts.ResultsPath)
	if err != nil {
		temporalClient.Close()
		return nil, fmt.Errorf("open results store: %w", err)
	}

	raterClient := llm.NewClient(opts.LLM)

	w := worker.New(temporalClient, wf.TaskQueue, worker.Options{})
	registerAll(w,
		scoring.NewActivities(raterClient, opts.Sink),
		aggregation.NewActivities(opts.Sink),
		results.NewActivities(store, opts.Sink),
	)

	slog.Info("Worker assembled",
		"task_queue", wf.TaskQueue,
		"temporal", opts.TemporalHostPort,
		"results_db", opts.ResultsPath)

	return &Worker{temporalClient: temporalClient, worker: w, store: store}, nil
}

// Registry is the subset of the Temporal worker used for registration,
// satisfied by worker.Worker and the SDK test environments.
type Registry interface {
	RegisterWorkflow(w interface{})
	RegisterActivity(a interface{})
}

// registerAll registers the workflow and each activity method individually.
// Registering the activity structs would make the SDK validate the promoted
// helpers from the embedded activity base, which do not have activity
// signatures and panic registration.
func registerAll(
	r Registry,
	scoringActs *scoring.Activities,
	aggregationActs *aggregation.Activities,
	resultsActs *results.Activities,
) {
	r.RegisterWorkflow(wf.HarmEvaluationWorkflow)
	r.RegisterActivity(scoringActs.GenerateResponse)
	r.RegisterActivity(scoringActs.ScoreInstance)
	r.RegisterActivity(aggregationActs.AggregateVerdict)
	r.RegisterActivity(resultsActs.PersistRecord)
}

// Run blocks processing the task queue until interrupted.
func (w *Worker) Run() error {
	defer w.Close()
	return w.worker.Run(worker.InterruptCh())
}

// Close releases the Temporal connection and the results store.
func (w *Worker) Close() {
	w.temporalClient.Close()
	if err := w.store.Close(); err != nil {
		slog.Error("Failed to close results store", "error", err)
	}
}
