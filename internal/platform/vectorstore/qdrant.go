// Package vectorstore implements the VectorStore contract against Qdrant's
// REST API, with one collection per embedding channel and tenant/video
// scoping expressed through the filter DSL in filter.go.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/videosearch/internal/domain/video"
	"github.com/heimdex/videosearch/internal/pkg/httpx"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
)

type QdrantConfig struct {
	URL        string
	Collection string // base name; one collection per channel is derived as "<base>_<channel>"
	VectorDim  int
}

type qdrantStore struct {
	log     *logger.Logger
	cfg     QdrantConfig
	baseURL string
	http    *http.Client
}

func NewQdrantStore(log *logger.Logger, cfg QdrantConfig) store.VectorStore {
	return &qdrantStore{
		log:     log.With("service", "QdrantVectorStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *qdrantStore) collectionFor(channel string) string {
	return s.cfg.Collection + "_" + channel
}

func channelVector(scene *video.Scene, channel string) []float32 {
	var raw []byte
	switch channel {
	case "dense_transcript":
		raw = scene.EmbeddingTranscript
	case "dense_visual":
		raw = scene.EmbeddingVisual
	case "dense_summary":
		raw = scene.EmbeddingSummary
	case "clip_image":
		raw = scene.EmbeddingClipImage
	}
	if len(raw) == 0 {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil
	}
	return vec
}

func (s *qdrantStore) UpsertScene(ctx context.Context, scene *video.Scene, tenantID uuid.UUID) error {
	for _, channel := range []string{"dense_transcript", "dense_visual", "dense_summary", "clip_image"} {
		vec := channelVector(scene, channel)
		if vec == nil {
			continue
		}
		payload := map[string]any{
			"points": []map[string]any{{
				"id":     scene.ID.String(),
				"vector": vec,
				"payload": map[string]any{
					"tenant_id": tenantID.String(),
					"video_id":  scene.VideoID.String(),
					"scene_id":  scene.ID.String(),
				},
			}},
		}
		if err := s.do(ctx, "upsert", "PUT", fmt.Sprintf("/collections/%s/points", s.collectionFor(channel)), payload, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *qdrantStore) Nearest(ctx context.Context, channel string, queryVec []float32, tenantID uuid.UUID, topK int, threshold float64, videoID *uuid.UUID) ([]store.NearestHit, error) {
	filter, err := translateFilterMap(tenantFilter(tenantID, videoID))
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"vector":       queryVec,
		"limit":        topK,
		"score_threshold": threshold,
		"with_payload": true,
		"filter":       filter.asMap(),
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, "search", "POST", fmt.Sprintf("/collections/%s/points/search", s.collectionFor(channel)), payload, &resp); err != nil {
		return nil, err
	}
	hits := make([]store.NearestHit, 0, len(resp.Result))
	for i, r := range resp.Result {
		sceneIDStr, _ := r.Payload["scene_id"].(string)
		sceneID, err := uuid.Parse(sceneIDStr)
		if err != nil {
			continue
		}
		hits = append(hits, store.NearestHit{SceneID: sceneID, Rank: i + 1, Similarity: r.Score})
	}
	return hits, nil
}

// BatchScore retrieves the stored vectors for sceneIDs and computes cosine
// similarity locally via dot product, since every vector is L2-normalized
// at ingest (C5 invariant) and Qdrant has no native "score these specific
// ids against this query" batch endpoint.
func (s *qdrantStore) BatchScore(ctx context.Context, channel string, queryVec []float32, sceneIDs []uuid.UUID, tenantID uuid.UUID) (map[uuid.UUID]float64, error) {
	ids := make([]string, 0, len(sceneIDs))
	for _, id := range sceneIDs {
		ids = append(ids, id.String())
	}
	payload := map[string]any{"ids": ids, "with_vector": true, "with_payload": true}
	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, "retrieve", "POST", fmt.Sprintf("/collections/%s/points", s.collectionFor(channel)), payload, &resp); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]float64, len(resp.Result))
	for _, r := range resp.Result {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			continue
		}
		out[id] = dot(queryVec, r.Vector)
	}
	return out, nil
}

func (s *qdrantStore) DeleteScenes(ctx context.Context, videoID uuid.UUID) error {
	filter, err := translateFilterMap(map[string]any{"video_id": map[string]any{"$eq": videoID.String()}})
	if err != nil {
		return err
	}
	for _, channel := range []string{"dense_transcript", "dense_visual", "dense_summary", "clip_image"} {
		payload := map[string]any{"filter": filter.asMap()}
		if err := s.do(ctx, "delete", "POST", fmt.Sprintf("/collections/%s/points/delete", s.collectionFor(channel)), payload, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *qdrantStore) UpdatePersonQueryEmbedding(ctx context.Context, personID uuid.UUID, vec []float32) error {
	payload := map[string]any{
		"points": []map[string]any{{
			"id":      personID.String(),
			"vector":  vec,
			"payload": map[string]any{"person_id": personID.String()},
		}},
	}
	return s.do(ctx, "upsert_person", "PUT", fmt.Sprintf("/collections/%s/points", s.collectionFor("person")), payload, nil)
}

func tenantFilter(tenantID uuid.UUID, videoID *uuid.UUID) map[string]any {
	and := []any{map[string]any{"tenant_id": map[string]any{"$eq": tenantID.String()}}}
	if videoID != nil {
		and = append(and, map[string]any{"video_id": map[string]any{"$eq": videoID.String()}})
	}
	return map[string]any{"$and": and}
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// do performs one Qdrant REST call with up to 3 attempts (JitterSleep
// between them), retrying transport errors and the statuses
// httpx.IsRetryableHTTPStatus accepts; any other status >= 300 is returned
// to the caller as a terminal error.
func (s *qdrantStore) do(ctx context.Context, op, method, path string, body any, out any) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(httpx.JitterSleep(time.Duration(attempt) * 200 * time.Millisecond))
		}
		var reader io.Reader
		if body != nil {
			buf, err := json.Marshal(body)
			if err != nil {
				return opErr(op, OperationErrorValidation, "encode request", err)
			}
			reader = bytes.NewReader(buf)
		}
		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
		if err != nil {
			return opErr(op, OperationErrorTransportFailed, "build request", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.http.Do(req)
		if err != nil {
			lastErr = opErr(op, OperationErrorTransportFailed, "transport error", err)
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
			lastErr = opErr(op, OperationErrorQueryFailed, string(respBody), nil)
			continue
		}
		if resp.StatusCode >= 300 {
			return opErr(op, OperationErrorQueryFailed, string(respBody), nil)
		}
		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return opErr(op, OperationErrorQueryFailed, "decode response", err)
			}
		}
		return nil
	}
	return lastErr
}
