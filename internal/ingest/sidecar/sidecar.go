// Package sidecar orchestrates ingestion for one video: scene detection,
// per-scene frame ranking, visual analysis, transcript alignment, and
// multi-channel embedding, persisted through the store adapters. Per-stage
// warnings accumulate without aborting the run, derived media is uploaded
// then referenced by key, and per-scene fan-out is bounded with
// errgroup+semaphore.
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"

	"github.com/heimdex/videosearch/internal/config"
	videorepo "github.com/heimdex/videosearch/internal/data/repos/video"
	"github.com/heimdex/videosearch/internal/domain/video"
	"github.com/heimdex/videosearch/internal/ingest/embed"
	"github.com/heimdex/videosearch/internal/ingest/framequality"
	"github.com/heimdex/videosearch/internal/ingest/media"
	"github.com/heimdex/videosearch/internal/ingest/scenedetect"
	"github.com/heimdex/videosearch/internal/ingest/transcript"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
)

const shortSceneReason = "short_scene_rich_transcript"

type Repos struct {
	Video videorepo.VideoRepo
	Scene videorepo.SceneRepo
}

type Adapters struct {
	Media       media.Tools
	Transcriber store.Transcriber
	Visual      store.VisualAnalyzer
	OCR         store.KeyframeOCR // nil disables keyframe OCR enrichment
	Objects     store.ObjectStore
	Vectors     store.VectorStore
	Lexical     store.LexicalStore
}

type Builder struct {
	repos    Repos
	adapters Adapters
	embedder *embed.Embedder
	cfg      *config.Config
	log      *logger.Logger
	apiSem   *semaphore.Weighted
	now      func() time.Time
}

func New(repos Repos, adapters Adapters, embedder *embed.Embedder, cfg *config.Config, log *logger.Logger) *Builder {
	maxAPI := cfg.Jobs.MaxAPIConcurrency
	if maxAPI <= 0 {
		maxAPI = 8
	}
	return &Builder{
		repos:    repos,
		adapters: adapters,
		embedder: embedder,
		cfg:      cfg,
		log:      log.With("service", "SidecarBuilder"),
		apiSem:   semaphore.NewWeighted(int64(maxAPI)),
		now:      time.Now,
	}
}

// sceneWork is the intermediate product of processing one scene before
// persistence; embeddings are kept alongside the domain row so the caller
// can upsert the vector store in the same pass.
type sceneWork struct {
	scene    *video.Scene
	tags     []string
	channels []embed.ChannelResult
	warnings []string
}

// Run executes one video end to end: probe, transcribe, scene-detect,
// per-scene fan-out, persist, index. It never returns a partial-failure
// error for scene-level problems (those degrade individual scenes);
// it returns an error only when the video itself cannot be processed at
// all (unreadable media, DB failure).
func (b *Builder) Run(ctx context.Context, tenantID, videoID uuid.UUID, localVideoPath, filename, language string) error {
	log := b.log.With("video_id", videoID, "tenant_id", tenantID)

	if err := b.repos.Video.UpdateFields(ctx, nil, videoID, map[string]interface{}{
		"status":           video.StatusProcessing,
		"processing_stage": "probe",
		"error":            "",
	}); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	// Reprocess idempotency: clear prior derived state before rebuilding it.
	if err := b.adapters.Vectors.DeleteScenes(ctx, videoID); err != nil {
		log.Warn("delete existing vectors failed", "error", err)
	}
	if err := b.adapters.Lexical.DeleteByVideo(ctx, videoID); err != nil {
		log.Warn("delete existing lexical docs failed", "error", err)
	}
	if err := b.repos.Scene.DeleteByVideoID(ctx, nil, videoID); err != nil {
		log.Warn("delete existing scenes failed", "error", err)
	}

	probe, err := b.adapters.Media.Probe(ctx, localVideoPath)
	if err != nil {
		b.fail(ctx, videoID, fmt.Errorf("probe video: %w", err))
		return err
	}

	if err := b.repos.Video.UpdateFields(ctx, nil, videoID, map[string]interface{}{
		"duration_s":       probe.DurationS,
		"width":            probe.Width,
		"height":           probe.Height,
		"frame_rate":       probe.FrameRate,
		"processing_stage": "transcribe",
	}); err != nil {
		return fmt.Errorf("persist probe: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "sidecar_*")
	if err != nil {
		b.fail(ctx, videoID, fmt.Errorf("temp dir: %w", err))
		return err
	}
	defer os.RemoveAll(tmpDir)

	fullText, segments, transLang := b.transcribe(ctx, *probe, localVideoPath, tmpDir, language, log)
	if transLang == "" {
		transLang = language
	}

	if err := b.repos.Video.UpdateFields(ctx, nil, videoID, map[string]interface{}{
		"full_transcript":     fullText,
		"transcript_language": transLang,
		"processing_stage":    "scenes",
	}); err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}

	intervals, err := scenedetect.Detect(ctx, b.adapters.Media, localVideoPath, probe.DurationS, scenedetect.Config{
		Strategy:           scenedetect.Strategy(b.cfg.Scene.Strategy),
		MinLenSeconds:      b.cfg.Scene.MinLenSeconds,
		AdaptiveThreshold:  b.cfg.Scene.AdaptiveThreshold,
		AdaptiveWindow:     b.cfg.Scene.AdaptiveWindow,
		AdaptiveMinContent: b.cfg.Scene.AdaptiveMinContent,
		ContentThreshold:   b.cfg.Scene.ContentThreshold,
	})
	if err != nil {
		b.fail(ctx, videoID, fmt.Errorf("scene detect: %w", err))
		return err
	}

	works := b.processScenes(ctx, videoID, tenantID, localVideoPath, tmpDir, filename, transLang, probe.DurationS, intervals, segments, log)

	scenes := make([]*video.Scene, 0, len(works))
	for _, w := range works {
		scenes = append(scenes, w.scene)
		for _, warn := range w.warnings {
			log.Warn("scene warning", "scene_index", w.scene.Index, "warning", warn)
		}
	}
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Index < scenes[j].Index })

	if _, err := b.repos.Scene.Create(ctx, nil, scenes); err != nil {
		b.fail(ctx, videoID, fmt.Errorf("persist scenes: %w", err))
		return err
	}

	if err := b.index(ctx, tenantID, videoID, transLang, works, log); err != nil {
		log.Warn("indexing completed with errors", "error", err)
	}

	richCount := 0
	for _, w := range works {
		if len(w.channels) > 0 {
			richCount++
		}
	}

	return b.repos.Video.UpdateFields(ctx, nil, videoID, map[string]interface{}{
		"status":              video.StatusReady,
		"processing_stage":    "done",
		"rich_semantics_flag": richCount > 0,
	})
}

// fail deletes any partial derived state from this run before writing the
// FAILED status, so a later reprocess starts from a clean slate.
func (b *Builder) fail(ctx context.Context, videoID uuid.UUID, cause error) {
	_ = b.adapters.Vectors.DeleteScenes(ctx, videoID)
	_ = b.adapters.Lexical.DeleteByVideo(ctx, videoID)
	_ = b.repos.Scene.DeleteByVideoID(ctx, nil, videoID)
	_ = b.repos.Video.UpdateFields(ctx, nil, videoID, map[string]interface{}{
		"status":           video.StatusFailed,
		"processing_stage": "failed",
		"error":            video.TruncatedError(cause.Error()),
	})
}

// transcribe extracts audio (when the probe reports an audio stream),
// transcribes it, and gates the result; a gated-out or audio-less video
// yields an empty transcript rather than an error.
func (b *Builder) transcribe(ctx context.Context, probe media.Probe, videoPath, tmpDir, language string, log *logger.Logger) (string, []store.TranscriptSegment, string) {
	if !probe.HasAudio {
		return "", nil, language
	}

	audioPath := filepath.Join(tmpDir, "audio.wav")
	if err := b.adapters.Media.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		log.Warn("extract audio failed", "error", err)
		return "", nil, language
	}

	result, err := b.adapters.Transcriber.Transcribe(ctx, audioPath, language)
	if err != nil {
		log.Warn("transcribe failed", "error", err)
		return "", nil, language
	}

	gate := transcript.Gate(result.Text, result.Segments, transcript.GateConfig{
		MinCharsForSpeech:  b.cfg.Trans.MinCharsForSpeech,
		MinSpeechCharRatio: b.cfg.Trans.MinSpeechCharRatio,
		MaxNoSpeechProb:    b.cfg.Trans.MaxNoSpeechProb,
		MinSpeechSegRatio:  b.cfg.Trans.MinSpeechSegRatio,
		MusicMarkers:       b.cfg.Trans.MusicMarkers,
		BannedPhrases:      b.cfg.Trans.BannedPhrases,
	})
	if !gate.HasSpeech {
		log.Info("transcript gated out", "reason", gate.Reason)
		return "", nil, language
	}
	return result.Text, result.Segments, language
}

func (b *Builder) processScenes(
	ctx context.Context,
	videoID, tenantID uuid.UUID,
	videoPath, tmpDir, filename, language string,
	durationS float64,
	intervals []scenedetect.Interval,
	segments []store.TranscriptSegment,
	log *logger.Logger,
) []sceneWork {
	results := make([]sceneWork, len(intervals))

	maxWorkers := b.cfg.Jobs.MaxSceneWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	sceneSem := semaphore.NewWeighted(int64(maxWorkers))

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for i, interval := range intervals {
		i, interval := i, interval
		g.Go(func() error {
			if err := sceneSem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sceneSem.Release(1)

			if gctx.Err() != nil {
				return nil
			}

			w := b.processOneScene(gctx, videoID, tenantID, videoPath, tmpDir, filename, language, durationS, interval, segments)
			mu.Lock()
			results[i] = w
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (b *Builder) processOneScene(
	ctx context.Context,
	videoID, tenantID uuid.UUID,
	videoPath, tmpDir, filename, language string,
	durationS float64,
	interval scenedetect.Interval,
	segments []store.TranscriptSegment,
) sceneWork {
	var warnings []string

	candidates, err := framequality.Extract(ctx, b.adapters.Media, videoPath, interval.StartS, interval.EndS, framequality.Config{
		MaxKeyframesPerScene: b.cfg.Frame.MaxKeyframesPerScene,
		BrightnessThreshold:  b.cfg.Frame.BrightnessThreshold,
		BlurThreshold:        b.cfg.Frame.BlurThreshold,
	})
	if err != nil {
		warnings = append(warnings, "frame extraction failed: "+err.Error())
	}
	ranked := framequality.RankedFrames(candidates, framequality.Config{
		BrightnessThreshold: b.cfg.Frame.BrightnessThreshold,
		BlurThreshold:       b.cfg.Frame.BlurThreshold,
	})
	rankedPaths := make([]string, len(ranked))
	for i, c := range ranked {
		path, err := writeJPEG(tmpDir, interval.Index, i, c)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("encode frame %d failed: %v", i, err))
			continue
		}
		rankedPaths[i] = path
	}

	transcriptSegment := transcript.Align(segments, interval.StartS, interval.EndS, durationS, transcript.Config{
		MinCharsFloor:     b.cfg.Trans.MinCharsFloor,
		ContextPadSeconds: b.cfg.Trans.ContextPadSeconds,
	})

	duration := interval.EndS - interval.StartS
	meaningfulTranscript := len(transcriptSegment) >= b.cfg.Visual.TranscriptThreshold

	var visualSkipReason string
	analyze := b.cfg.Visual.Enabled
	if !b.cfg.Visual.Enabled {
		visualSkipReason = "visual_semantics_disabled"
		analyze = false
	} else if meaningfulTranscript && duration < b.cfg.Visual.MinDurationS {
		visualSkipReason = shortSceneReason
		analyze = false
	} else if !meaningfulTranscript && b.cfg.Visual.ForceOnNoTranscript {
		analyze = true
	}

	var analysis *store.VisualAnalysis
	var thumbnailKey string
	var thumbnailPath string
	var clipImageURL string

	if analyze && len(rankedPaths) > 0 {
		analysis, thumbnailPath = b.analyzeWithRetry(ctx, rankedPaths, transcriptSegment, language)
	} else if len(rankedPaths) > 0 {
		thumbnailPath = rankedPaths[0]
	}

	if visualSkipReason != "" {
		warnings = append(warnings, "visual analysis skipped: "+visualSkipReason)
	}

	// The CLIP embedder calls out to a remote worker (internal/platform/clip)
	// that fetches the image by URL; it cannot see this process's local temp
	// files. The keyframe is uploaded here, before embedding, so the
	// clip_image channel gets a URL the worker can actually reach rather than
	// a path that only exists on this machine.
	if thumbnailPath != "" {
		if key, err := b.uploadThumbnail(ctx, tenantID, videoID, interval.Index, thumbnailPath); err != nil {
			warnings = append(warnings, "thumbnail upload failed: "+err.Error())
		} else {
			thumbnailKey = key
			if url, err := b.adapters.Objects.SignedDownloadURL(ctx, key, b.cfg.Embed.ClipImageURLTTL); err != nil {
				warnings = append(warnings, "thumbnail sign url failed: "+err.Error())
			} else {
				clipImageURL = url
			}
		}
	}

	visualDescription := ""
	visualSummary := ""
	var tags []string
	var entities, actions []string
	if analysis != nil && analysis.Status == "ok" {
		visualDescription = analysis.Description
		entities = analysis.MainEntities
		actions = analysis.Actions
		tags = video.NormalizeTags(append(append([]string{}, entities...), actions...))
		visualSummary = b.buildVisualSummary(analysis, language)
	}

	if b.cfg.Visual.OCREnabled && b.adapters.OCR != nil && thumbnailPath != "" {
		if ocrTags, warn := b.ocrKeyframe(ctx, thumbnailPath); warn != "" {
			warnings = append(warnings, warn)
		} else if len(ocrTags) > 0 {
			tags = video.NormalizeTags(append(tags, ocrTags...))
		}
	}

	combinedText := buildCombinedText(transcriptSegment, visualDescription, filename, language)

	inputs := b.embedder.BuildInputs(transcriptSegment, visualDescription, tags, visualSummary, clipImageURL, language)
	channels := b.embedder.EmbedAll(ctx, inputs)

	hasAnyVector := false
	for _, c := range channels {
		if len(c.Vector) > 0 {
			hasAnyVector = true
			break
		}
	}
	if !hasAnyVector {
		combinedText = "no content"
	}

	scene := &video.Scene{
		ID:                uuid.New(),
		VideoID:           videoID,
		Index:             interval.Index,
		StartS:            interval.StartS,
		EndS:              interval.EndS,
		TranscriptSegment: transcriptSegment,
		VisualSummary:     visualSummary,
		VisualDescription: visualDescription,
		CombinedText:      combinedText,
		ThumbnailKey:      thumbnailKey,
		VisualEntities:    marshalTags(entities),
		VisualActions:     marshalTags(actions),
		Tags:              marshalTags(tags),
		EmbeddingVersion:  b.cfg.Embed.Version,
	}
	applyChannelVectors(scene, channels)
	scene.EmbeddingMetadata = marshalMetadata(b.cfg.Embed.Version, channels)

	return sceneWork{scene: scene, tags: tags, channels: channels, warnings: warnings}
}

// buildVisualSummary concatenates the analyzer's description with localized
// entity/action suffixes, mirroring the scene summary the search response
// surfaces alongside the raw description.
func (b *Builder) buildVisualSummary(analysis *store.VisualAnalysis, language string) string {
	var parts []string
	if strings.TrimSpace(analysis.Description) != "" {
		parts = append(parts, analysis.Description)
	}
	if b.cfg.Visual.IncludeEntities && len(analysis.MainEntities) > 0 {
		if language == "ko" {
			parts = append(parts, "주요 대상: "+strings.Join(analysis.MainEntities, ", "))
		} else {
			parts = append(parts, "Main entities: "+strings.Join(analysis.MainEntities, ", "))
		}
	}
	if b.cfg.Visual.IncludeActions && len(analysis.Actions) > 0 {
		if language == "ko" {
			parts = append(parts, "행동: "+strings.Join(analysis.Actions, ", "))
		} else {
			parts = append(parts, "Actions: "+strings.Join(analysis.Actions, ", "))
		}
	}
	return strings.Join(parts, ". ")
}

// ocrKeyframe reads on-screen text from the chosen keyframe and distills it
// into candidate tags (distinct words, 3..30 chars, capped). OCR failures
// degrade the scene's tags, never the scene.
func (b *Builder) ocrKeyframe(ctx context.Context, framePath string) ([]string, string) {
	data, err := os.ReadFile(framePath)
	if err != nil {
		return nil, "ocr read frame failed: " + err.Error()
	}
	if err := b.apiSem.Acquire(ctx, 1); err != nil {
		return nil, ""
	}
	result, err := b.adapters.OCR.OCRImage(ctx, data)
	b.apiSem.Release(1)
	if err != nil {
		return nil, "keyframe ocr failed: " + err.Error()
	}
	if result == nil || strings.TrimSpace(result.Text) == "" {
		return nil, ""
	}

	maxTags := b.cfg.Visual.OCRMaxTags
	if maxTags <= 0 {
		maxTags = 10
	}
	seen := make(map[string]struct{})
	var out []string
	for _, word := range strings.Fields(result.Text) {
		w := strings.ToLower(strings.Trim(word, ".,!?:;\"'()[]{}"))
		if len(w) < 3 || len(w) > 30 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) >= maxTags {
			break
		}
	}
	return out, ""
}

// analyzeWithRetry tries ranked keyframes in descending quality order
// until one produces an "ok" analysis or the retry budget is exhausted.
func (b *Builder) analyzeWithRetry(ctx context.Context, rankedPaths []string, transcriptContext, language string) (*store.VisualAnalysis, string) {
	maxAttempts := b.cfg.Visual.MaxFrameRetries + 1
	if maxAttempts > len(rankedPaths) {
		maxAttempts = len(rankedPaths)
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var last *store.VisualAnalysis
	lastPath := rankedPaths[0]
	for i := 0; i < maxAttempts; i++ {
		path := rankedPaths[i]
		if path == "" {
			continue
		}
		if err := b.apiSem.Acquire(ctx, 1); err != nil {
			return last, lastPath
		}
		result, err := b.adapters.Visual.Analyze(ctx, path, transcriptContext, language)
		b.apiSem.Release(1)
		lastPath = path
		if err != nil {
			continue
		}
		last = result
		if result.Status == "ok" {
			return result, path
		}
	}
	return last, lastPath
}

// writeJPEG encodes a decoded frame candidate to a temp file so downstream
// adapters (visual analyzer, keyframe OCR, thumbnail upload) that take a
// file path rather than an image.Image can consume it.
func writeJPEG(tmpDir string, sceneIndex, frameIndex int, c framequality.Candidate) (string, error) {
	path := filepath.Join(tmpDir, fmt.Sprintf("scene_%06d_frame_%02d.jpg", sceneIndex, frameIndex))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := jpeg.Encode(f, c.Image, &jpeg.Options{Quality: 85}); err != nil {
		return "", err
	}
	return path, nil
}

func (b *Builder) uploadThumbnail(ctx context.Context, tenantID, videoID uuid.UUID, sceneIndex int, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("decode thumbnail: %w", err)
	}

	img = scaleToWidth(img, b.cfg.Frame.ThumbnailMaxWidth)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}

	key := fmt.Sprintf("%s/%s/thumbnails/scene_%d.jpg", tenantID, videoID, sceneIndex)
	if err := b.adapters.Objects.Put(ctx, key, buf.Bytes(), "image/jpeg"); err != nil {
		return "", err
	}
	return key, nil
}

// scaleToWidth downscales img to at most maxWidth, preserving aspect ratio.
// Frames already narrow enough pass through untouched.
func scaleToWidth(img image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 {
		return img
	}
	bounds := img.Bounds()
	if bounds.Dx() <= maxWidth {
		return img
	}
	h := bounds.Dy() * maxWidth / bounds.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// buildCombinedText assembles the audio-first, then-visual,
// then-filename-metadata ordering, with label prefixes localized to the
// video's detected language (falling back to English).
func buildCombinedText(transcriptSegment, visualDescription, filename, language string) string {
	labels := labelsFor(language)
	var parts []string
	if strings.TrimSpace(transcriptSegment) != "" {
		parts = append(parts, labels.audio+": "+transcriptSegment)
	}
	if strings.TrimSpace(visualDescription) != "" {
		parts = append(parts, labels.visual+": "+visualDescription)
	}
	if strings.TrimSpace(filename) != "" {
		parts = append(parts, labels.file+": "+filename)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " | ")
}

type labelSet struct{ audio, visual, file string }

func labelsFor(language string) labelSet {
	switch language {
	case "ko":
		return labelSet{audio: "오디오", visual: "화면", file: "파일"}
	case "ja":
		return labelSet{audio: "音声", visual: "映像", file: "ファイル"}
	default:
		return labelSet{audio: "Audio", visual: "Visual", file: "File"}
	}
}

func applyChannelVectors(scene *video.Scene, channels []embed.ChannelResult) {
	for _, c := range channels {
		blob := marshalVector(c.Vector)
		switch c.Channel {
		case embed.ChannelTranscript:
			scene.EmbeddingTranscript = blob
		case embed.ChannelVisual:
			scene.EmbeddingVisual = blob
		case embed.ChannelSummary:
			scene.EmbeddingSummary = blob
		case embed.ChannelClipImage:
			scene.EmbeddingClipImage = blob
		}
	}
}

// index upserts every scene with at least one vector into the vector
// store and every scene into the lexical store, as two independent
// best-effort passes; a failure on one channel does not block the other.
func (b *Builder) index(ctx context.Context, tenantID, videoID uuid.UUID, language string, works []sceneWork, log *logger.Logger) error {
	var docs []*video.LexicalSceneDoc
	var lastErr error

	for _, w := range works {
		hasVector := len(w.scene.EmbeddingTranscript) > 0 || len(w.scene.EmbeddingVisual) > 0 ||
			len(w.scene.EmbeddingSummary) > 0 || len(w.scene.EmbeddingClipImage) > 0
		if hasVector {
			if err := b.adapters.Vectors.UpsertScene(ctx, w.scene, tenantID); err != nil {
				log.Warn("vector upsert failed", "scene_id", w.scene.ID, "error", err)
				lastErr = err
			}
		}

		docs = append(docs, &video.LexicalSceneDoc{
			SceneID:           w.scene.ID,
			TenantID:          tenantID,
			VideoID:           videoID,
			Index:             w.scene.Index,
			StartS:            w.scene.StartS,
			EndS:              w.scene.EndS,
			Language:          language,
			TranscriptSegment: w.scene.TranscriptSegment,
			VisualSummary:     w.scene.VisualSummary,
			VisualDescription: w.scene.VisualDescription,
			CombinedText:      w.scene.CombinedText,
			Tags:              w.tags,
			TagsText:          strings.Join(w.tags, " "),
			ThumbnailURL:      w.scene.ThumbnailKey,
			CreatedAt:         b.now(),
		})
	}

	if err := b.adapters.Lexical.BulkUpsert(ctx, docs); err != nil {
		log.Warn("lexical bulk upsert failed", "error", err)
		lastErr = err
	}
	return lastErr
}

func marshalVector(vec []float32) datatypes.JSON {
	if len(vec) == 0 {
		return nil
	}
	buf, err := json.Marshal(vec)
	if err != nil {
		return nil
	}
	return datatypes.JSON(buf)
}

func marshalTags(tags []string) datatypes.JSON {
	if len(tags) == 0 {
		return nil
	}
	buf, err := json.Marshal(tags)
	if err != nil {
		return nil
	}
	return datatypes.JSON(buf)
}

func marshalMetadata(version string, channels []embed.ChannelResult) datatypes.JSON {
	perChannel := make(map[string]video.ChannelMetadata, len(channels))
	for _, c := range channels {
		perChannel[c.Channel] = c.Metadata
	}
	buf, err := json.Marshal(video.EmbeddingMetadataBlob{Version: version, PerChannel: perChannel})
	if err != nil {
		return nil
	}
	return datatypes.JSON(buf)
}
