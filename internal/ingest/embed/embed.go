// Package embed generates the per-scene, per-channel vectors: per-channel
// text/image truncation, bounded retry with exponential backoff around the
// TextEmbedder/ImageEmbedder adapters, L2 normalization, and a metadata
// record persisted alongside each vector.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"time"

	"github.com/heimdex/videosearch/internal/domain/video"
	"github.com/heimdex/videosearch/internal/pkg/httpx"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
)

// Channel names match the vector store's per-channel collections
// (internal/platform/vectorstore) and the fusion/weights channel keys
// (internal/search/weights) exactly; they are not independently chosen.
const (
	ChannelTranscript = "dense_transcript"
	ChannelVisual     = "dense_visual"
	ChannelSummary    = "dense_summary"
	ChannelClipImage  = "clip_image"
)

type Config struct {
	TranscriptMaxLength int
	VisualMaxLength     int
	SummaryMaxLength    int
	VisualIncludeTags   bool
	SummaryEnabled      bool
	MaxRetries          int
	RetryDelay          time.Duration
	Version             string
}

type ChannelInput struct {
	Channel  string
	Text     string // empty for clip_image
	ImageRef string // keyframe path/URL, only for clip_image
	Language string
}

// ChannelResult is one channel's outcome: Vector is nil when the channel
// was skipped (empty input) or failed after retries; Metadata is always
// populated (with Error set in the failure/skip cases).
type ChannelResult struct {
	Channel  string
	Vector   []float32
	Metadata video.ChannelMetadata
}

type Embedder struct {
	Text  store.TextEmbedder
	Image store.ImageEmbedder
	Cfg   Config
	Log   *logger.Logger
	Now   func() time.Time
}

func New(text store.TextEmbedder, image store.ImageEmbedder, cfg Config, log *logger.Logger) *Embedder {
	return &Embedder{Text: text, Image: image, Cfg: cfg, Log: log, Now: time.Now}
}

// BuildInputs assembles the per-channel text/image inputs for one scene
// from the sidecar builder's already-computed fields, applying smart
// truncation per channel. Channels whose input text ends up empty are
// still returned (with empty Text) so the caller's embedding loop records
// them as skipped with a reason.
func (e *Embedder) BuildInputs(transcriptSegment, visualDescription string, tags []string, summary string, clipImagePath string, language string) []ChannelInput {
	inputs := []ChannelInput{
		{Channel: ChannelTranscript, Text: smartTruncate(transcriptSegment, e.Cfg.TranscriptMaxLength), Language: language},
	}

	visualText := visualDescription
	if e.Cfg.VisualIncludeTags && len(tags) > 0 {
		visualText = strings.TrimSpace(visualText + " " + strings.Join(tags, ", "))
	}
	inputs = append(inputs, ChannelInput{Channel: ChannelVisual, Text: smartTruncate(visualText, e.Cfg.VisualMaxLength), Language: language})

	if e.Cfg.SummaryEnabled {
		inputs = append(inputs, ChannelInput{Channel: ChannelSummary, Text: smartTruncate(summary, e.Cfg.SummaryMaxLength), Language: language})
	}

	if clipImagePath != "" {
		inputs = append(inputs, ChannelInput{Channel: ChannelClipImage, ImageRef: clipImagePath, Language: language})
	}

	return inputs
}

// EmbedAll generates every channel's vector, L2-normalized, with bounded
// retry per channel. A channel whose input is empty or whose call fails
// after retries is recorded as nil with a reason; this never aborts the
// scene.
func (e *Embedder) EmbedAll(ctx context.Context, inputs []ChannelInput) []ChannelResult {
	out := make([]ChannelResult, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, e.embedOne(ctx, in))
	}
	return out
}

func (e *Embedder) embedOne(ctx context.Context, in ChannelInput) ChannelResult {
	start := e.now()
	if in.Channel != ChannelClipImage && strings.TrimSpace(in.Text) == "" {
		return ChannelResult{Channel: in.Channel, Metadata: e.metadata(in, nil, start, "empty_input")}
	}
	if in.Channel == ChannelClipImage && in.ImageRef == "" {
		return ChannelResult{Channel: in.Channel, Metadata: e.metadata(in, nil, start, "no_keyframe")}
	}

	vec, err := e.callWithRetry(ctx, in)
	if err != nil {
		e.Log.Warn("embedding channel failed after retries", "channel", in.Channel, "error", err)
		return ChannelResult{Channel: in.Channel, Metadata: e.metadata(in, nil, start, err.Error())}
	}
	normalized := l2Normalize(vec)
	return ChannelResult{Channel: in.Channel, Vector: normalized, Metadata: e.metadata(in, normalized, start, "")}
}

func (e *Embedder) callWithRetry(ctx context.Context, in ChannelInput) ([]float32, error) {
	maxRetries := e.Cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	delay := e.Cfg.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		vec, err := e.invoke(ctx, in)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) || attempt == maxRetries {
			return nil, lastErr
		}
		time.Sleep(httpx.JitterSleep(delay))
		delay *= 2
	}
	return nil, lastErr
}

func (e *Embedder) invoke(ctx context.Context, in ChannelInput) ([]float32, error) {
	if in.Channel == ChannelClipImage {
		return e.Image.EmbedImage(ctx, in.ImageRef)
	}
	return e.Text.Embed(ctx, in.Text, 0)
}

func (e *Embedder) metadata(in ChannelInput, vec []float32, start time.Time, errMsg string) video.ChannelMetadata {
	model := "text-embedder"
	if in.Channel == ChannelClipImage {
		model = "image-embedder"
	}
	inputLen := len([]rune(in.Text))
	if in.Channel == ChannelClipImage {
		inputLen = 0
	}
	return video.ChannelMetadata{
		Model:           model,
		Dimensions:      len(vec),
		InputTextHash:   hashText(in.Text),
		InputTextLength: inputLen,
		Language:        in.Language,
		Channel:         in.Channel,
		GeneratedAt:     e.now().UTC().Format(time.RFC3339),
		LatencyMS:       e.now().Sub(start).Milliseconds(),
		Error:           errMsg,
	}
}

func (e *Embedder) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func hashText(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// l2Normalize implements the C5 ingest-time invariant: every vector is
// L2-normalized so cosine similarity reduces to inner product downstream.
func l2Normalize(vec []float32) []float32 {
	if len(vec) == 0 {
		return vec
	}
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm <= 1e-12 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// smartTruncate truncates to maxLen runes, preferring to break at the last
// sentence boundary (., !, ?) within the limit; falls back to a hard cut
// when no boundary is found.
func smartTruncate(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}
	window := string(runes[:maxLen])
	lastBoundary := -1
	for i, r := range window {
		if r == '.' || r == '!' || r == '?' {
			lastBoundary = i + 1
		}
	}
	if lastBoundary > maxLen/2 {
		return strings.TrimSpace(window[:lastBoundary])
	}
	return strings.TrimSpace(window)
}
