package video

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusFailed     Status = "FAILED"
)

// Video is the root entity for one uploaded asset. The Sidecar Builder owns
// every mutable field after upload; readers never write to it directly.
type Video struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	StorageKey string    `gorm:"column:storage_key;not null" json:"storage_key"`
	Filename   string    `gorm:"column:filename" json:"filename,omitempty"`

	DurationS float64 `gorm:"column:duration_s" json:"duration_s"`
	Width     int     `gorm:"column:width" json:"width"`
	Height    int     `gorm:"column:height" json:"height"`
	FrameRate float64 `gorm:"column:frame_rate" json:"frame_rate"`

	Status          Status `gorm:"column:status;not null;default:'PENDING';index" json:"status"`
	ProcessingStage string `gorm:"column:processing_stage" json:"processing_stage,omitempty"`
	Error           string `gorm:"column:error" json:"error,omitempty"`

	TranscriptLanguage string `gorm:"column:transcript_language" json:"transcript_language,omitempty"`
	FullTranscript     string `gorm:"column:full_transcript" json:"full_transcript,omitempty"`
	RichSemanticsFlag  bool   `gorm:"column:rich_semantics_flag;default:false" json:"rich_semantics_flag"`

	QueuedAt  *time.Time     `gorm:"column:queued_at" json:"queued_at,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Video) TableName() string { return "video" }

// CanTransitionTo enforces the Video lifecycle invariant: PENDING->PROCESSING
// ->{READY,FAILED}; re-entry to PENDING only via explicit reprocess.
func (v Video) CanTransitionTo(next Status) bool {
	switch v.Status {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusReady || next == StatusFailed
	case StatusReady, StatusFailed:
		return next == StatusPending
	default:
		return false
	}
}

// TruncatedError truncates to the 500-char limit the job orchestrator
// persists on the video row.
func TruncatedError(msg string) string {
	const maxLen = 500
	if len(msg) <= maxLen {
		return msg
	}
	return msg[:maxLen]
}
