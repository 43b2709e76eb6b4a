// Package orchestrator runs the job layer: a Temporal-backed worker pool
// dispatching ingest/reprocess/export/person_photo jobs with
// at-most-once-per-fingerprint scheduling, bounded retry with exponential
// backoff, and per-kind time limits. Each job maps to a single workflow
// execution; a video's internal fan-out (scenes x channels) is already
// bounded inside the sidecar builder, so the workflow needs no yield/poll
// loop of its own.
package orchestrator

import (
	"github.com/google/uuid"

	"github.com/heimdex/videosearch/internal/domain/video"
)

// Payload is the durable queue message the broker carries. Temporal's
// workflow-ID dedupe plus the DB-side status check in JobRepo give the
// at-most-once-per-fingerprint guarantee; the workflow ID
// itself is the fingerprint.
type Payload struct {
	TenantID           uuid.UUID     `json:"tenant_id"`
	VideoID            uuid.UUID     `json:"video_id"`
	Kind               video.JobKind `json:"kind"`
	TranscriptLanguage string        `json:"transcript_language,omitempty"`
}

func (p Payload) Fingerprint() string {
	return video.Fingerprint(p.VideoID, p.Kind)
}

// Result is returned by the Run activity for observability; the durable
// status lives on the SearchJob/Video rows, this is just the workflow's
// in-band return value.
type Result struct {
	Status string `json:"status"`
}
