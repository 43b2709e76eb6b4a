package video

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Scene is created once per processing run and never partially mutated;
// reprocess deletes and recreates the full set.
type Scene struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VideoID uuid.UUID `gorm:"type:uuid;not null;index" json:"video_id"`
	Video   *Video    `gorm:"constraint:OnDelete:CASCADE;foreignKey:VideoID;references:ID" json:"-"`

	Index  int     `gorm:"column:index;not null" json:"index"`
	StartS float64 `gorm:"column:start_s;not null" json:"start_s"`
	EndS   float64 `gorm:"column:end_s;not null" json:"end_s"`

	TranscriptSegment  string         `gorm:"column:transcript_segment" json:"transcript_segment,omitempty"`
	VisualSummary      string         `gorm:"column:visual_summary" json:"visual_summary,omitempty"`
	VisualDescription  string         `gorm:"column:visual_description" json:"visual_description,omitempty"`
	VisualEntities     datatypes.JSON `gorm:"column:visual_entities;type:jsonb" json:"visual_entities,omitempty"`
	VisualActions      datatypes.JSON `gorm:"column:visual_actions;type:jsonb" json:"visual_actions,omitempty"`
	Tags               datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`
	CombinedText       string         `gorm:"column:combined_text" json:"combined_text,omitempty"`
	ThumbnailKey       string         `gorm:"column:thumbnail_key" json:"thumbnail_key,omitempty"`

	EmbeddingTranscript datatypes.JSON `gorm:"column:embedding_transcript;type:jsonb" json:"-"`
	EmbeddingVisual     datatypes.JSON `gorm:"column:embedding_visual;type:jsonb" json:"-"`
	EmbeddingSummary    datatypes.JSON `gorm:"column:embedding_summary;type:jsonb" json:"-"`
	EmbeddingClipImage  datatypes.JSON `gorm:"column:embedding_clip_image;type:jsonb" json:"-"`

	EmbeddingMetadata datatypes.JSON `gorm:"column:embedding_metadata;type:jsonb" json:"embedding_metadata,omitempty"`
	EmbeddingVersion  string         `gorm:"column:embedding_version" json:"embedding_version,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Scene) TableName() string { return "scene" }

// ChannelMetadata is the persisted per-channel embedding metadata record,
// one per generated (or attempted) vector.
type ChannelMetadata struct {
	Model           string  `json:"model"`
	Dimensions      int     `json:"dimensions"`
	InputTextHash   string  `json:"input_text_hash"`
	InputTextLength int     `json:"input_text_length"`
	Language        string  `json:"language"`
	Channel         string  `json:"channel"`
	GeneratedAt     string  `json:"generated_at"`
	LatencyMS       int64   `json:"latency_ms"`
	Error           string  `json:"error,omitempty"`
}

// EmbeddingMetadataBlob is the full embedding_metadata column payload.
type EmbeddingMetadataBlob struct {
	Version    string                     `json:"version"`
	PerChannel map[string]ChannelMetadata `json:"per_channel"`
}

// NormalizeTags applies the tag invariant: lower-cased, trimmed, deduped,
// each <=30 chars.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = normalizeOneTag(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func normalizeOneTag(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if len(t) > 30 {
		t = t[:30]
	}
	return t
}
