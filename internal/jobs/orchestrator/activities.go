package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	videorepo "github.com/heimdex/videosearch/internal/data/repos/video"
	"github.com/heimdex/videosearch/internal/domain/video"
	apperr "github.com/heimdex/videosearch/internal/pkg/errors"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
)

// ActivityRun is the Temporal activity name; registered on the worker
// alongside the workflow so dispatch.go can reference it without importing
// an Activities instance.
const ActivityRun = "RunVideoSearchJob"

// IngestRunner is satisfied by *sidecar.Builder. Kept as an interface here
// so this package does not import internal/ingest/sidecar directly --
// the cmd/ entrypoint wires the concrete builder in.
type IngestRunner interface {
	Run(ctx context.Context, tenantID, videoID uuid.UUID, localVideoPath, filename, language string) error
}

// ExternalHandler dispatches job kinds this service does not process
// itself (export concatenation, person-photo embedding). A nil handler
// makes the kind unsupported here.
type ExternalHandler func(ctx context.Context, p Payload) error

type Activities struct {
	Log     *logger.Logger
	Videos  videorepo.VideoRepo
	Objects store.ObjectStore
	Sidecar IngestRunner

	Export      ExternalHandler
	PersonPhoto ExternalHandler
}

func (a *Activities) Run(ctx context.Context, p Payload) (Result, error) {
	log := a.Log.With("video_id", p.VideoID, "tenant_id", p.TenantID, "kind", p.Kind)

	switch p.Kind {
	case video.JobIngest, video.JobReprocess:
		if err := a.runIngest(ctx, p, log); err != nil {
			return Result{}, err
		}
		return Result{Status: string(video.JobStatusSucceeded)}, nil
	case video.JobExport:
		if a.Export == nil {
			return Result{}, nonRetryable(apperr.Contract, "export is an external collaborator not wired into this core")
		}
		if err := a.Export(ctx, p); err != nil {
			return Result{}, err
		}
		return Result{Status: string(video.JobStatusSucceeded)}, nil
	case video.JobPersonPhoto:
		if a.PersonPhoto == nil {
			return Result{}, nonRetryable(apperr.Contract, "person_photo is an external collaborator not wired into this core")
		}
		if err := a.PersonPhoto(ctx, p); err != nil {
			return Result{}, err
		}
		return Result{Status: string(video.JobStatusSucceeded)}, nil
	default:
		return Result{}, nonRetryable(apperr.InputValidation, fmt.Sprintf("unknown job kind %q", p.Kind))
	}
}

// runIngest downloads the source object to a scratch file (activity-local
// storage; Temporal does not share a filesystem across attempts) and hands
// it to the Sidecar Builder. The heartbeat lets cooperative cancellation
// interrupt a long-running ingest between scenes, per the concurrency
// model's suspension-point contract.
func (a *Activities) runIngest(ctx context.Context, p Payload, log *logger.Logger) error {
	v, err := a.Videos.GetByID(ctx, nil, p.TenantID, p.VideoID)
	if err != nil {
		return nonRetryableWrap(apperr.NotFound, "load video", err)
	}

	data, err := a.Objects.Get(ctx, v.StorageKey)
	if err != nil {
		return fmt.Errorf("download source object: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "ingest_*")
	if err != nil {
		return fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	ext := filepath.Ext(v.StorageKey)
	if ext == "" {
		ext = ".mp4"
	}
	localPath := filepath.Join(tmpDir, "source"+ext)
	if err := os.WriteFile(localPath, data, 0o600); err != nil {
		return fmt.Errorf("write scratch file: %w", err)
	}

	// Heartbeat once now and then every 10 seconds while the Sidecar Builder
	// runs, inside the workflow's 30-second HeartbeatTimeout; a cancellation
	// Temporal delivers through a heartbeat cancels ctx, which the builder
	// checks between scenes.
	activity.RecordHeartbeat(ctx, "downloaded, starting sidecar build")
	hbCtx, stopHB := context.WithCancel(ctx)
	defer stopHB()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, "sidecar build running")
			}
		}
	}()

	language := p.TranscriptLanguage
	if language == "" {
		language = v.TranscriptLanguage
	}

	return a.Sidecar.Run(ctx, p.TenantID, p.VideoID, localPath, v.Filename, language)
}

func nonRetryable(kind apperr.Kind, msg string) error {
	return temporal.NewApplicationError(msg, kind.String())
}

func nonRetryableWrap(kind apperr.Kind, msg string, cause error) error {
	return temporal.NewApplicationErrorWithCause(msg, kind.String(), cause)
}
