// Package store names the index adapter contracts. Concrete
// drivers (qdrant, bleve, gcs, gcp speech/vision, http clients) live in
// sibling platform packages and implement these interfaces.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/videosearch/internal/domain/video"
)

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	SignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type NearestHit struct {
	SceneID    uuid.UUID
	Rank       int
	Similarity float64
}

type VectorStore interface {
	UpsertScene(ctx context.Context, scene *video.Scene, tenantID uuid.UUID) error
	Nearest(ctx context.Context, channel string, queryVec []float32, tenantID uuid.UUID, topK int, threshold float64, videoID *uuid.UUID) ([]NearestHit, error)
	BatchScore(ctx context.Context, channel string, queryVec []float32, sceneIDs []uuid.UUID, tenantID uuid.UUID) (map[uuid.UUID]float64, error)
	DeleteScenes(ctx context.Context, videoID uuid.UUID) error
	UpdatePersonQueryEmbedding(ctx context.Context, personID uuid.UUID, vec []float32) error
}

type LexicalHit struct {
	SceneID uuid.UUID
	Score   float64
	Rank    int
}

type LexicalFilters struct {
	VideoID *uuid.UUID
}

type LexicalStore interface {
	EnsureIndex(ctx context.Context) error
	UpsertDoc(ctx context.Context, doc *video.LexicalSceneDoc) error
	BulkUpsert(ctx context.Context, docs []*video.LexicalSceneDoc) error
	DeleteByVideo(ctx context.Context, videoID uuid.UUID) error
	Search(ctx context.Context, tenantID uuid.UUID, query, lang string, size int, filters LexicalFilters) ([]LexicalHit, error)
}

type TranscriptSegment struct {
	StartS        float64
	EndS          float64
	Text          string
	NoSpeechProb  float64
}

type TranscriptResult struct {
	Text     string
	Segments []TranscriptSegment
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, langHint string) (*TranscriptResult, error)
}

type VisualAnalysis struct {
	Status       string // "ok" | "no_content"
	Description  string
	MainEntities []string
	Actions      []string
	Error        string
}

type VisualAnalyzer interface {
	Analyze(ctx context.Context, imagePath string, context string, lang string) (*VisualAnalysis, error)
}

// OCRResult carries whatever legible text a keyframe contains, collapsed to
// single-space whitespace, plus the detector's mean block confidence.
type OCRResult struct {
	Text       string
	Confidence float64
}

// KeyframeOCR reads on-screen text out of a scene keyframe so the sidecar
// can fold signage, captions, and titles into the scene's tags.
type KeyframeOCR interface {
	OCRImage(ctx context.Context, img []byte) (*OCRResult, error)
}

type TextEmbedder interface {
	Embed(ctx context.Context, text string, dimHint int) ([]float32, error)
}

type ImageEmbedder interface {
	EmbedImage(ctx context.Context, pathOrURL string) ([]float32, error)
	EmbedTextForImageSpace(ctx context.Context, text string) ([]float32, error)
}
