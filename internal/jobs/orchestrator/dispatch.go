package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"

	videorepo "github.com/heimdex/videosearch/internal/data/repos/video"
	"github.com/heimdex/videosearch/internal/domain/video"
	"github.com/heimdex/videosearch/internal/pkg/logger"
)

// TaskQueue is the single Temporal task queue this core dispatches to and
// polls from. The job "kind" discriminates behavior inside one workflow
// type rather than routing to separate queues, since all kinds share the
// same at-most-once-per-fingerprint and retry semantics.
const TaskQueue = "videosearch-jobs"

// Dispatcher enqueues jobs. The DB row (via JobRepo.Enqueue, a
// FirstOrCreate on Fingerprint) and the Temporal WorkflowID (also the
// fingerprint) together give the at-most-once-per-fingerprint guarantee:
// a duplicate dispatch either no-ops at the DB layer or collides with the
// already-running workflow execution, whichever happens first.
type Dispatcher struct {
	tc   temporalsdkclient.Client
	jobs videorepo.JobRepo
	log  *logger.Logger
}

func NewDispatcher(tc temporalsdkclient.Client, jobs videorepo.JobRepo, log *logger.Logger) *Dispatcher {
	return &Dispatcher{tc: tc, jobs: jobs, log: log.With("component", "JobDispatcher")}
}

// Enqueue records the job row and starts (or rejoins) its workflow
// execution. Kind=ingest/reprocess drive the Sidecar Builder; export and
// person_photo are dispatched the same way but handled by whatever
// ExternalHandler the worker process registered for them.
func (d *Dispatcher) Enqueue(ctx context.Context, tenantID, videoID uuid.UUID, kind video.JobKind, transcriptLanguage string) (*video.SearchJob, error) {
	p := Payload{TenantID: tenantID, VideoID: videoID, Kind: kind, TranscriptLanguage: transcriptLanguage}

	job := &video.SearchJob{
		TenantID:           tenantID,
		VideoID:            videoID,
		Kind:               kind,
		Fingerprint:        p.Fingerprint(),
		Status:             video.JobStatusQueued,
		TranscriptLanguage: transcriptLanguage,
	}
	job, err := d.jobs.Enqueue(ctx, nil, job)
	if err != nil {
		return nil, fmt.Errorf("enqueue job row: %w", err)
	}

	_, err = d.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                    p.Fingerprint(),
		TaskQueue:             TaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	}, WorkflowName, p)
	if err != nil {
		return nil, fmt.Errorf("start workflow: %w", err)
	}
	return job, nil
}
