package video

import (
	"time"

	"github.com/google/uuid"
)

type FusionMethod string

const (
	FusionMinMaxMean FusionMethod = "minmax_mean"
	FusionRRF        FusionMethod = "rrf"
)

type VisualMode string

const (
	VisualModeRecall VisualMode = "recall"
	VisualModeRerank VisualMode = "rerank"
	VisualModeSkip   VisualMode = "skip"
	VisualModeAuto   VisualMode = "auto"
)

// ChannelWeights uses the user-facing channel names; the internal fusion
// keys (dense_transcript, dense_visual, dense_summary, lexical) are mapped
// by the weight resolver, never stored directly.
type ChannelWeights struct {
	Transcript float64 `json:"transcript"`
	Visual     float64 `json:"visual"`
	Summary    float64 `json:"summary"`
	Lexical    float64 `json:"lexical"`
}

type UserSearchPreference struct {
	TenantID      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"tenant_id"`
	Weights       ChannelWeights `gorm:"embedded;embeddedPrefix:weight_" json:"channel_weights"`
	FusionMethod  FusionMethod   `gorm:"column:fusion_method;default:'rrf'" json:"fusion_method"`
	VisualMode    VisualMode     `gorm:"column:visual_mode;default:'auto'" json:"visual_mode"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserSearchPreference) TableName() string { return "user_search_preference" }

// Person is consumed only through its query_embedding; the person subsystem
// that owns CRUD for it lives outside this core.
type Person struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	DisplayName   string    `json:"display_name"`
	QueryEmbedding []float32 `json:"query_embedding,omitempty"`
	Status        string    `json:"status"`
}
