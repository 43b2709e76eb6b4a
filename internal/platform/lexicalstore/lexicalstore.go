// Package lexicalstore implements the LexicalStore contract as a BM25
// multi-field index over bleve: per-scene documents with independently
// boosted fields (transcript, visual description, tags) behind a
// mutex-guarded index handle.
package lexicalstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"

	"github.com/heimdex/videosearch/internal/domain/video"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
)

// fieldDoc is the bleve-indexed projection of a video.LexicalSceneDoc.
// Keyword fields (tenant_id, video_id, scene_id) are unanalyzed for exact
// filtering; every text field uses the index's default English analyzer
// whatever the document's language, and the registered cjk analyzer is not
// assigned to any field.
type fieldDoc struct {
	SceneID           string `json:"scene_id"`
	TenantID          string `json:"tenant_id"`
	VideoID           string `json:"video_id"`
	Language          string `json:"language"`
	TranscriptSegment string `json:"transcript_segment"`
	VisualDescription string `json:"visual_description"`
	VisualSummary     string `json:"visual_summary"`
	CombinedText      string `json:"combined_text"`
	TagsText          string `json:"tags_text"`
}

// field boosts order the lexical signal: spoken words matter most, then
// visual description, then free-form tags, with combined_text as a
// low-weight catch-all for cross-field matches.
const (
	boostTranscript = 3.0
	boostVisual     = 2.0
	boostTags       = 1.5
	boostCombined   = 1.0
)

type Store struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string
	log   *logger.Logger
}

func New(path string, log *logger.Logger) *Store {
	return &Store{path: path, log: log.With("service", "LexicalStore")}
}

func (s *Store) EnsureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return nil
	}

	idx, err := bleve.Open(s.path)
	if err == nil {
		s.index = idx
		return nil
	}

	idx, err = bleve.New(s.path, buildMapping())
	if err != nil {
		return fmt.Errorf("create bleve index: %w", err)
	}
	s.index = idx
	return nil
}

func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = en.AnalyzerName
	im.AddCustomAnalyzer("keyword", map[string]interface{}{"type": keyword.Name})
	im.AddCustomAnalyzer("cjk", map[string]interface{}{"type": cjk.AnalyzerName})

	doc := bleve.NewDocumentMapping()
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = "keyword"
	doc.AddFieldMappingsAt("scene_id", exact)
	doc.AddFieldMappingsAt("tenant_id", exact)
	doc.AddFieldMappingsAt("video_id", exact)

	text := bleve.NewTextFieldMapping()
	for _, f := range []string{"transcript_segment", "visual_description", "visual_summary", "combined_text", "tags_text"} {
		doc.AddFieldMappingsAt(f, text)
	}

	im.DefaultMapping = doc
	return im
}

func toFieldDoc(d *video.LexicalSceneDoc) *fieldDoc {
	return &fieldDoc{
		SceneID:           d.SceneID.String(),
		TenantID:          d.TenantID.String(),
		VideoID:           d.VideoID.String(),
		Language:          d.Language,
		TranscriptSegment: d.TranscriptSegment,
		VisualDescription: d.VisualDescription,
		VisualSummary:     d.VisualSummary,
		CombinedText:      d.CombinedText,
		TagsText:          d.TagsText,
	}
}

func (s *Store) UpsertDoc(ctx context.Context, doc *video.LexicalSceneDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return fmt.Errorf("lexical store: index not initialized")
	}
	return s.index.Index(doc.SceneID.String(), toFieldDoc(doc))
}

// BulkUpsert batches scene docs into a single bleve batch, mirroring the
// indexer.BM25Indexer.Index grounding's bulk-or-nothing contract for a
// video's scenes.
func (s *Store) BulkUpsert(ctx context.Context, docs []*video.LexicalSceneDoc) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return fmt.Errorf("lexical store: index not initialized")
	}

	batch := s.index.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.SceneID.String(), toFieldDoc(d)); err != nil {
			return fmt.Errorf("batch index scene %s: %w", d.SceneID, err)
		}
	}
	return s.index.Batch(batch)
}

func (s *Store) DeleteByVideo(ctx context.Context, videoID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}

	q := bleve.NewTermQuery(videoID.String())
	q.SetField("video_id")
	req := bleve.NewSearchRequest(q)
	req.Size = 10000
	res, err := s.index.Search(req)
	if err != nil {
		return fmt.Errorf("find docs for video %s: %w", videoID, err)
	}
	if len(res.Hits) == 0 {
		return nil
	}

	batch := s.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	return s.index.Batch(batch)
}

// Search issues a boosted disjunction query across transcript, visual, and
// tag fields, scoped by tenant and (optionally) video, returning ranked
// hits per store.LexicalHit. Language is advisory only: bleve's default
// mapping analyzer already handles CJK text reasonably, and scenes are
// indexed once at their detected language.
func (s *Store) Search(ctx context.Context, tenantID uuid.UUID, q, lang string, size int, filters store.LexicalFilters) ([]store.LexicalHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, fmt.Errorf("lexical store: index not initialized")
	}
	if size <= 0 {
		size = 20
	}

	disjunct := bleve.NewDisjunctionQuery(
		boosted(bleve.NewMatchQuery(q), "transcript_segment", boostTranscript),
		boosted(bleve.NewMatchQuery(q), "visual_description", boostVisual),
		boosted(bleve.NewMatchQuery(q), "tags_text", boostTags),
		boosted(bleve.NewMatchQuery(q), "combined_text", boostCombined),
	)

	tenantTerm := bleve.NewTermQuery(tenantID.String())
	tenantTerm.SetField("tenant_id")

	conjuncts := []query.Query{tenantTerm, disjunct}
	if filters.VideoID != nil {
		vidTerm := bleve.NewTermQuery(filters.VideoID.String())
		vidTerm.SetField("video_id")
		conjuncts = append(conjuncts, vidTerm)
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(conjuncts...))
	req.Size = size
	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	out := make([]store.LexicalHit, 0, len(res.Hits))
	for i, hit := range res.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		out = append(out, store.LexicalHit{SceneID: id, Score: hit.Score, Rank: i + 1})
	}
	return out, nil
}

func boosted(mq *query.MatchQuery, field string, boost float64) *query.MatchQuery {
	mq.SetField(field)
	mq.SetBoost(boost)
	return mq
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}
