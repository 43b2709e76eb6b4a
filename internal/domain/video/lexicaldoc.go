package video

import (
	"time"

	"github.com/google/uuid"
)

// LexicalSceneDoc mirrors a Scene in the full-text index, keyed by scene_id.
// Upsert is idempotent on SceneID; deleting a video purges all its docs.
type LexicalSceneDoc struct {
	SceneID           uuid.UUID `json:"scene_id"`
	TenantID          uuid.UUID `json:"tenant_id"`
	VideoID           uuid.UUID `json:"video_id"`
	Index             int       `json:"index"`
	StartS            float64   `json:"start_s"`
	EndS              float64   `json:"end_s"`
	Language          string    `json:"language"`
	TranscriptSegment string    `json:"transcript_segment"`
	VisualSummary     string    `json:"visual_summary"`
	VisualDescription string    `json:"visual_description"`
	CombinedText      string    `json:"combined_text"`
	Tags              []string  `json:"tags"`
	TagsText          string    `json:"tags_text"`
	ThumbnailURL      string    `json:"thumbnail_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
