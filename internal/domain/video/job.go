package video

import (
	"time"

	"github.com/google/uuid"
)

type JobKind string

const (
	JobIngest      JobKind = "ingest"
	JobReprocess   JobKind = "reprocess"
	JobExport      JobKind = "export"
	JobPersonPhoto JobKind = "person_photo"
)

type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed   JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// SearchJob is the durable queue row the job orchestrator dispatches
// from. Fingerprint (video id plus job kind) is the dedupe key.
type SearchJob struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	VideoID     uuid.UUID `gorm:"type:uuid;not null;index" json:"video_id"`
	Kind        JobKind   `gorm:"column:kind;not null" json:"kind"`
	Fingerprint string    `gorm:"column:fingerprint;uniqueIndex" json:"fingerprint"`
	Status      JobStatus `gorm:"column:status;not null;default:'queued';index" json:"status"`
	Attempts    int       `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError   string    `gorm:"column:last_error" json:"last_error,omitempty"`
	TranscriptLanguage string `gorm:"column:transcript_language" json:"transcript_language,omitempty"`

	QueuedAt    time.Time  `gorm:"not null;default:now()" json:"queued_at"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt  *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

func (SearchJob) TableName() string { return "search_job" }

// Fingerprint computes the at-most-once dedupe key for a (video, kind) pair.
func Fingerprint(videoID uuid.UUID, kind JobKind) string {
	return videoID.String() + ":" + string(kind)
}

func TimeLimitFor(kind JobKind, ingest, export, personPhoto time.Duration) time.Duration {
	switch kind {
	case JobIngest, JobReprocess:
		return ingest
	case JobExport:
		return export
	case JobPersonPhoto:
		return personPhoto
	default:
		return ingest
	}
}
