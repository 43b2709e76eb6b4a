package orchestrator

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/heimdex/videosearch/internal/config"
	"github.com/heimdex/videosearch/internal/domain/video"
)

// WorkflowName is registered explicitly (rather than via reflection on the
// closure below) so dispatch.go can start it by name without holding a
// reference to the closure instance.
const WorkflowName = "VideoSearchJob"

// NewWorkflow closes over the process's job-timing config and returns the
// Temporal workflow function. One workflow execution handles exactly one
// job; all internal fan-out (scenes, channels) happens inside the Run
// activity via the Sidecar Builder's own bounded worker pool, so this
// workflow has no yield/poll loop -- it runs the activity once to
// completion or exhausts its retry policy.
func NewWorkflow(jobs config.JobsConfig) func(workflow.Context, Payload) (Result, error) {
	return func(ctx workflow.Context, p Payload) (Result, error) {
		timeLimit := video.TimeLimitFor(p.Kind, jobs.IngestTimeLimit, jobs.ExportTimeLimit, jobs.PersonPhotoLimit)
		if timeLimit <= 0 {
			timeLimit = 45 * time.Minute
		}

		minBackoff := jobs.MinBackoff
		if minBackoff <= 0 {
			minBackoff = 2 * time.Second
		}
		maxBackoff := jobs.MaxBackoff
		if maxBackoff <= 0 {
			maxBackoff = 2 * time.Minute
		}
		maxAttempts := int32(jobs.MaxRetries)
		if maxAttempts <= 0 {
			maxAttempts = 5
		}

		ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: timeLimit,
			HeartbeatTimeout:    30 * time.Second,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:        minBackoff,
				BackoffCoefficient:     2.0,
				MaximumInterval:        maxBackoff,
				MaximumAttempts:        maxAttempts,
				NonRetryableErrorTypes: []string{"input_validation", "not_found", "authz", "permanent_external", "contract", "cancelled"},
			},
		})

		var res Result
		err := workflow.ExecuteActivity(ctx, ActivityRun, p).Get(ctx, &res)
		if err != nil {
			return Result{Status: string(video.JobStatusFailed)}, err
		}
		return res, nil
	}
}
