package vectorstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/heimdex/videosearch/internal/domain/video"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
)

// LocalStore is an in-process VectorStore backed by one coder/hnsw graph
// per channel (cosine distance, lazy deletion via orphaned key mappings
// rather than Graph.Delete, which mishandles removal of the last node) --
// the VECTOR_PROVIDER=local alternative to the Qdrant-backed store for
// single-process / test deployments where no external vector database is
// available.
//
// hnsw has no native tenant filter, so Nearest over-fetches a multiple of
// topK and filters by tenant (and optional video scope) post-search; this
// keeps the tenancy invariant (every returned hit belongs to the requesting
// tenant) without forking the library. Vectors are also kept in a plain map
// alongside the graph so BatchScore (used by the reranker) can look one up
// by scene_id directly instead of re-deriving it from the graph.
type LocalStore struct {
	mu      sync.RWMutex
	log     *logger.Logger
	graphs  map[string]*hnsw.Graph[uint64]
	entries map[string]map[uint64]localEntry
	byScene map[string]map[uuid.UUID]uint64
	vectors map[string]map[uuid.UUID][]float32
	nextKey map[string]uint64

	personVecs map[uuid.UUID][]float32
}

type localEntry struct {
	sceneID  uuid.UUID
	videoID  uuid.UUID
	tenantID uuid.UUID
}

func NewLocalStore(log *logger.Logger) store.VectorStore {
	return &LocalStore{
		log:        log.With("service", "LocalVectorStore"),
		graphs:     make(map[string]*hnsw.Graph[uint64]),
		entries:    make(map[string]map[uint64]localEntry),
		byScene:    make(map[string]map[uuid.UUID]uint64),
		vectors:    make(map[string]map[uuid.UUID][]float32),
		nextKey:    make(map[string]uint64),
		personVecs: make(map[uuid.UUID][]float32),
	}
}

func (s *LocalStore) graphFor(channel string) *hnsw.Graph[uint64] {
	g, ok := s.graphs[channel]
	if ok {
		return g
	}
	g = hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 64
	g.Ml = 0.25
	s.graphs[channel] = g
	s.entries[channel] = make(map[uint64]localEntry)
	s.byScene[channel] = make(map[uuid.UUID]uint64)
	s.vectors[channel] = make(map[uuid.UUID][]float32)
	return g
}

func (s *LocalStore) upsertChannel(channel string, sceneID, videoID, tenantID uuid.UUID, vec []float32) {
	if len(vec) == 0 {
		return
	}
	g := s.graphFor(channel)
	if oldKey, ok := s.byScene[channel][sceneID]; ok {
		// Lazy delete: orphan the old mapping rather than calling
		// Graph.Delete, which mishandles removal of the last node.
		delete(s.entries[channel], oldKey)
	}
	key := s.nextKey[channel]
	s.nextKey[channel] = key + 1
	g.Add(hnsw.MakeNode(key, vec))
	s.entries[channel][key] = localEntry{sceneID: sceneID, videoID: videoID, tenantID: tenantID}
	s.byScene[channel][sceneID] = key
	s.vectors[channel][sceneID] = vec
}

func (s *LocalStore) UpsertScene(ctx context.Context, scene *video.Scene, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels := map[string]datatypes.JSON{
		"dense_transcript": scene.EmbeddingTranscript,
		"dense_visual":     scene.EmbeddingVisual,
		"dense_summary":    scene.EmbeddingSummary,
		"clip_image":       scene.EmbeddingClipImage,
	}
	for channel, raw := range channels {
		vec, err := decodeVec(raw)
		if err != nil || vec == nil {
			continue
		}
		s.upsertChannel(channel, scene.ID, scene.VideoID, tenantID, vec)
	}
	return nil
}

func (s *LocalStore) Nearest(ctx context.Context, channel string, queryVec []float32, tenantID uuid.UUID, topK int, threshold float64, videoID *uuid.UUID) ([]store.NearestHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[channel]
	if !ok || g.Len() == 0 || topK <= 0 {
		return nil, nil
	}

	entries := s.entries[channel]
	// Over-fetch to survive post-filtering by tenant/video scope; widen
	// the pool until it covers the whole graph or we have enough hits.
	fetch := topK * 4
	if fetch < 20 {
		fetch = 20
	}
	for {
		nodes := g.Search(queryVec, fetch)
		hits := make([]store.NearestHit, 0, topK)
		rank := 0
		for _, n := range nodes {
			e, ok := entries[n.Key]
			if !ok || e.tenantID != tenantID {
				continue
			}
			if videoID != nil && e.videoID != *videoID {
				continue
			}
			sim := 1.0 - float64(g.Distance(queryVec, n.Value))
			if sim < threshold {
				continue
			}
			rank++
			hits = append(hits, store.NearestHit{SceneID: e.sceneID, Rank: rank, Similarity: sim})
			if len(hits) >= topK {
				return hits, nil
			}
		}
		if fetch >= g.Len() {
			return hits, nil
		}
		fetch *= 2
	}
}

func (s *LocalStore) BatchScore(ctx context.Context, channel string, queryVec []float32, sceneIDs []uuid.UUID, tenantID uuid.UUID) (map[uuid.UUID]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]float64, len(sceneIDs))
	g, ok := s.graphs[channel]
	if !ok {
		return out, nil
	}
	vecs := s.vectors[channel]
	entries := s.entries[channel]
	scene := s.byScene[channel]
	for _, id := range sceneIDs {
		key, ok := scene[id]
		if !ok {
			continue
		}
		e, ok := entries[key]
		if !ok || e.tenantID != tenantID {
			continue
		}
		vec, ok := vecs[id]
		if !ok {
			continue
		}
		out[id] = 1.0 - float64(g.Distance(queryVec, vec))
	}
	return out, nil
}

func (s *LocalStore) DeleteScenes(ctx context.Context, videoID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for channel, entries := range s.entries {
		for key, e := range entries {
			if e.videoID != videoID {
				continue
			}
			delete(entries, key)
			delete(s.byScene[channel], e.sceneID)
			delete(s.vectors[channel], e.sceneID)
		}
	}
	return nil
}

func (s *LocalStore) UpdatePersonQueryEmbedding(ctx context.Context, personID uuid.UUID, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personVecs[personID] = vec
	return nil
}

func decodeVec(raw datatypes.JSON) ([]float32, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}
