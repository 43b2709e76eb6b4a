package orchestrator

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/heimdex/videosearch/internal/config"
	"github.com/heimdex/videosearch/internal/pkg/logger"
)

// Worker owns the Temporal worker polling TaskQueue. Worker concurrency is
// capped by Temporal's own task-poller/slot configuration (the broker's
// "prefetch" equivalent); within one slot, the activity's blocking I/O
// (object-store download, Sidecar Builder run) is fine per the
// concurrency model's "blocking I/O is allowed" contract.
type Worker struct {
	w   worker.Worker
	log *logger.Logger
}

func NewWorker(tc temporalsdkclient.Client, cfg *config.Config, activities *Activities, log *logger.Logger) (*Worker, error) {
	if tc == nil {
		return nil, fmt.Errorf("orchestrator: temporal client is required")
	}
	if activities == nil {
		return nil, fmt.Errorf("orchestrator: activities are required")
	}

	w := worker.New(tc, TaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(NewWorkflow(cfg.Jobs), workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(activities.Run, activity.RegisterOptions{Name: ActivityRun})

	return &Worker{w: w, log: log.With("component", "JobWorker")}, nil
}

func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("starting job worker", "task_queue", TaskQueue)
	return w.w.Run(worker.InterruptCh())
}

func (w *Worker) Stop() {
	w.w.Stop()
}
