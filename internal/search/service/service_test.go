package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/heimdex/videosearch/internal/config"
	"github.com/heimdex/videosearch/internal/domain/video"
	apperr "github.com/heimdex/videosearch/internal/pkg/errors"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
	"github.com/heimdex/videosearch/internal/search/fetch"
	"github.com/heimdex/videosearch/internal/search/plan"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	require.NoError(t, err)
	return log
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(testLogger(t))
	require.NoError(t, err)
	return cfg
}

type fakeSceneRepo struct {
	byID map[uuid.UUID]*video.Scene
}

func (f *fakeSceneRepo) Create(ctx context.Context, tx *gorm.DB, scenes []*video.Scene) ([]*video.Scene, error) {
	return scenes, nil
}

func (f *fakeSceneRepo) GetByVideoID(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) ([]*video.Scene, error) {
	return nil, nil
}

func (f *fakeSceneRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*video.Scene, error) {
	out := make([]*video.Scene, 0, len(ids))
	for _, id := range ids {
		if sc, ok := f.byID[id]; ok {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (f *fakeSceneRepo) DeleteByVideoID(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) error {
	return nil
}

type fakePreferenceRepo struct {
	pref *video.UserSearchPreference
}

func (f *fakePreferenceRepo) GetByTenantID(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*video.UserSearchPreference, error) {
	return f.pref, nil
}

func (f *fakePreferenceRepo) Upsert(ctx context.Context, tx *gorm.DB, pref *video.UserSearchPreference) error {
	return nil
}

type fakeObjectStore struct {
	signedURL string
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}
func (f *fakeObjectStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (f *fakeObjectStore) SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", nil
	}
	return f.signedURL, nil
}
func (f *fakeObjectStore) SignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", nil
}

type fakePersonLookup struct {
	persons []plan.Person
	err     error
}

func (f *fakePersonLookup) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]plan.Person, error) {
	return f.persons, f.err
}

type fakeVectorStore struct {
	hits map[string][]store.NearestHit
}

func (f *fakeVectorStore) UpsertScene(ctx context.Context, scene *video.Scene, tenantID uuid.UUID) error {
	return nil
}

func (f *fakeVectorStore) Nearest(ctx context.Context, channel string, queryVec []float32, tenantID uuid.UUID, topK int, threshold float64, videoID *uuid.UUID) ([]store.NearestHit, error) {
	return f.hits[channel], nil
}

func (f *fakeVectorStore) BatchScore(ctx context.Context, channel string, queryVec []float32, sceneIDs []uuid.UUID, tenantID uuid.UUID) (map[uuid.UUID]float64, error) {
	out := make(map[uuid.UUID]float64, len(sceneIDs))
	for i, id := range sceneIDs {
		out[id] = 1.0 - float64(i)*0.1
	}
	return out, nil
}

func (f *fakeVectorStore) DeleteScenes(ctx context.Context, videoID uuid.UUID) error { return nil }

func (f *fakeVectorStore) UpdatePersonQueryEmbedding(ctx context.Context, personID uuid.UUID, vec []float32) error {
	return nil
}

type fakeLexicalStore struct {
	hits []store.LexicalHit
}

func (f *fakeLexicalStore) EnsureIndex(ctx context.Context) error { return nil }
func (f *fakeLexicalStore) UpsertDoc(ctx context.Context, doc *video.LexicalSceneDoc) error {
	return nil
}
func (f *fakeLexicalStore) BulkUpsert(ctx context.Context, docs []*video.LexicalSceneDoc) error {
	return nil
}
func (f *fakeLexicalStore) DeleteByVideo(ctx context.Context, videoID uuid.UUID) error { return nil }
func (f *fakeLexicalStore) Search(ctx context.Context, tenantID uuid.UUID, query, lang string, size int, filters store.LexicalFilters) ([]store.LexicalHit, error) {
	return f.hits, nil
}

type fakeTextEmbedder struct{ vec []float32 }

func (f *fakeTextEmbedder) Embed(ctx context.Context, text string, dimHint int) ([]float32, error) {
	return f.vec, nil
}

type fakeImageEmbedder struct{ vec []float32 }

func (f *fakeImageEmbedder) EmbedImage(ctx context.Context, pathOrURL string) ([]float32, error) {
	return f.vec, nil
}
func (f *fakeImageEmbedder) EmbedTextForImageSpace(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func newScene(videoID uuid.UUID) *video.Scene {
	return &video.Scene{
		ID:                uuid.New(),
		VideoID:           videoID,
		Index:             0,
		StartS:            0,
		EndS:              5,
		TranscriptSegment: "a chef slices an onion",
		ThumbnailKey:      "thumb/key.jpg",
	}
}

func newTestService(t *testing.T, deps Deps, cfg *config.Config) *Service {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	return New(deps, cfg, testLogger(t))
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := newTestService(t, Deps{Scenes: &fakeSceneRepo{}, Prefs: &fakePreferenceRepo{}, Objects: &fakeObjectStore{}}, nil)
	_, err := svc.Search(context.Background(), Request{TenantID: uuid.New(), Query: ""})
	assert.Error(t, err)
}

func TestSearchRejectsOverlongQuery(t *testing.T) {
	svc := newTestService(t, Deps{Scenes: &fakeSceneRepo{}, Prefs: &fakePreferenceRepo{}, Objects: &fakeObjectStore{}}, nil)
	long := make([]rune, 1001)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.Search(context.Background(), Request{TenantID: uuid.New(), Query: string(long)})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InputValidation))
}

func TestSearchRejectsBadChannelWeights(t *testing.T) {
	svc := newTestService(t, Deps{Scenes: &fakeSceneRepo{}, Prefs: &fakePreferenceRepo{}, Objects: &fakeObjectStore{}}, nil)

	cases := []map[string]float64{
		{"visual": 1.5},                  // out of range
		{"lexical": -0.2},                // negative
		{"transcripts": 0.5},             // unknown channel key
		{"transcript": 0, "visual": 0},   // present but all zero
	}
	for _, weights := range cases {
		_, err := svc.Search(context.Background(), Request{
			TenantID:       uuid.New(),
			Query:          "onion soup",
			ChannelWeights: weights,
		})
		require.Error(t, err, "weights %v must be rejected", weights)
		assert.True(t, apperr.Is(err, apperr.InputValidation), "weights %v must surface as a client error", weights)
	}
}

func TestSearchHydratesResultsFromSceneRepo(t *testing.T) {
	tenantID := uuid.New()
	videoID := uuid.New()
	scene := newScene(videoID)

	vs := &fakeVectorStore{hits: map[string][]store.NearestHit{
		"dense_transcript": {{SceneID: scene.ID, Rank: 1, Similarity: 0.9}},
	}}
	deps := Deps{
		Scenes:  &fakeSceneRepo{byID: map[uuid.UUID]*video.Scene{scene.ID: scene}},
		Prefs:   &fakePreferenceRepo{},
		Objects: &fakeObjectStore{signedURL: "https://signed.example/thumb"},
		Fetch: fetch.Deps{
			Vectors: vs,
			Lexical: &fakeLexicalStore{},
			Text:    &fakeTextEmbedder{vec: []float32{1, 0}},
			Image:   &fakeImageEmbedder{},
		},
	}

	resp, err := newTestService(t, deps, nil).Search(context.Background(), Request{
		TenantID: tenantID,
		Query:    "onion soup",
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	r := resp.Results[0]
	assert.Equal(t, scene.ID.String(), r.SceneID)
	assert.Equal(t, videoID.String(), r.VideoID)
	assert.Equal(t, scene.TranscriptSegment, r.TranscriptSegment)
	assert.Equal(t, "https://signed.example/thumb", r.ThumbnailURL)
	require.NotNil(t, r.Debug)
}

func TestSearchDefaultsOutOfRangeLimitToTen(t *testing.T) {
	tenantID := uuid.New()
	videoID := uuid.New()
	scenes := make(map[uuid.UUID]*video.Scene, 20)
	hits := make([]store.NearestHit, 0, 20)
	for i := 0; i < 20; i++ {
		sc := newScene(videoID)
		scenes[sc.ID] = sc
		hits = append(hits, store.NearestHit{SceneID: sc.ID, Rank: i + 1, Similarity: 1.0 - float64(i)*0.01})
	}
	vs := &fakeVectorStore{hits: map[string][]store.NearestHit{"dense_transcript": hits}}
	deps := Deps{
		Scenes:  &fakeSceneRepo{byID: scenes},
		Prefs:   &fakePreferenceRepo{},
		Objects: &fakeObjectStore{},
		Fetch: fetch.Deps{
			Vectors: vs,
			Lexical: &fakeLexicalStore{},
			Text:    &fakeTextEmbedder{vec: []float32{1, 0}},
			Image:   &fakeImageEmbedder{},
		},
	}

	resp, err := newTestService(t, deps, nil).Search(context.Background(), Request{
		TenantID: tenantID,
		Query:    "onion soup",
		Limit:    0,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 10)
}

func TestSearchUsesDefaultWeightsWhenNoPreferenceSaved(t *testing.T) {
	tenantID := uuid.New()
	videoID := uuid.New()
	scene := newScene(videoID)
	vs := &fakeVectorStore{hits: map[string][]store.NearestHit{
		"dense_transcript": {{SceneID: scene.ID, Rank: 1, Similarity: 0.9}},
	}}
	deps := Deps{
		Scenes:  &fakeSceneRepo{byID: map[uuid.UUID]*video.Scene{scene.ID: scene}},
		Prefs:   &fakePreferenceRepo{pref: nil},
		Objects: &fakeObjectStore{},
		Fetch: fetch.Deps{
			Vectors: vs,
			Lexical: &fakeLexicalStore{},
			Text:    &fakeTextEmbedder{vec: []float32{1, 0}},
			Image:   &fakeImageEmbedder{},
		},
	}

	resp, err := newTestService(t, deps, nil).Search(context.Background(), Request{
		TenantID:            tenantID,
		Query:               "a long descriptive sentence about the scene",
		UseSavedPreferences: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "default", resp.Results[0].Debug.WeightsSource)
}

func TestSearchAppliesRequestWeightsOverSavedPreference(t *testing.T) {
	tenantID := uuid.New()
	videoID := uuid.New()
	scene := newScene(videoID)
	vs := &fakeVectorStore{hits: map[string][]store.NearestHit{
		"dense_transcript": {{SceneID: scene.ID, Rank: 1, Similarity: 0.9}},
	}}
	savedPref := &video.UserSearchPreference{
		TenantID: tenantID,
		Weights:  video.ChannelWeights{Transcript: 0.1, Visual: 0.1, Summary: 0.1, Lexical: 0.7},
	}
	deps := Deps{
		Scenes:  &fakeSceneRepo{byID: map[uuid.UUID]*video.Scene{scene.ID: scene}},
		Prefs:   &fakePreferenceRepo{pref: savedPref},
		Objects: &fakeObjectStore{},
		Fetch: fetch.Deps{
			Vectors: vs,
			Lexical: &fakeLexicalStore{},
			Text:    &fakeTextEmbedder{vec: []float32{1, 0}},
			Image:   &fakeImageEmbedder{},
		},
	}

	resp, err := newTestService(t, deps, nil).Search(context.Background(), Request{
		TenantID:            tenantID,
		Query:               "a long descriptive sentence about the scene",
		UseSavedPreferences: true,
		ChannelWeights:      map[string]float64{"transcript": 1, "visual": 0, "summary": 0, "lexical": 0},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "request", resp.Results[0].Debug.WeightsSource)
}

func TestSearchLookupIntentGatingRestrictsToLexicalHits(t *testing.T) {
	tenantID := uuid.New()
	videoID := uuid.New()
	denseOnlyScene := newScene(videoID)
	lexicalScene := newScene(videoID)

	vs := &fakeVectorStore{hits: map[string][]store.NearestHit{
		"dense_transcript": {
			{SceneID: denseOnlyScene.ID, Rank: 1, Similarity: 0.95},
			{SceneID: lexicalScene.ID, Rank: 2, Similarity: 0.80},
		},
	}}
	lex := &fakeLexicalStore{hits: []store.LexicalHit{{SceneID: lexicalScene.ID, Rank: 1, Score: 5.0}}}

	deps := Deps{
		Scenes: &fakeSceneRepo{byID: map[uuid.UUID]*video.Scene{
			denseOnlyScene.ID: denseOnlyScene,
			lexicalScene.ID:   lexicalScene,
		}},
		Prefs:   &fakePreferenceRepo{},
		Objects: &fakeObjectStore{},
		Fetch: fetch.Deps{
			Vectors: vs,
			Lexical: lex,
			Text:    &fakeTextEmbedder{vec: []float32{1, 0}},
			Image:   &fakeImageEmbedder{},
		},
	}

	// "onion soup" is two short tokens: plan.ClassifyIntent treats this as lookup.
	resp, err := newTestService(t, deps, nil).Search(context.Background(), Request{
		TenantID: tenantID,
		Query:    "onion soup",
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, lexicalScene.ID.String(), resp.Results[0].SceneID)
	assert.Equal(t, "supported", resp.Results[0].MatchQuality)
}

func TestSearchRerankModeSkipsWhenClipScoreRangeIsFlat(t *testing.T) {
	tenantID := uuid.New()
	videoID := uuid.New()
	scene := newScene(videoID)
	vs := &fakeVectorStore{hits: map[string][]store.NearestHit{
		"dense_transcript": {{SceneID: scene.ID, Rank: 1, Similarity: 0.9}},
	}}
	deps := Deps{
		Scenes:  &fakeSceneRepo{byID: map[uuid.UUID]*video.Scene{scene.ID: scene}},
		Prefs:   &fakePreferenceRepo{},
		Objects: &fakeObjectStore{},
		Fetch: fetch.Deps{
			Vectors: vs,
			Lexical: &fakeLexicalStore{},
			Text:    &fakeTextEmbedder{vec: []float32{1, 0}},
			Image:   &fakeImageEmbedder{vec: nil},
		},
	}

	resp, err := newTestService(t, deps, nil).Search(context.Background(), Request{
		TenantID:   tenantID,
		Query:      "a long descriptive sentence about the scene",
		VisualMode: "rerank",
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.NotNil(t, resp.Results[0].Debug.Rerank)
	assert.NotEmpty(t, resp.Results[0].Debug.Rerank.SkippedReason)
}

func TestSearchRerankModeAppliesClipBlendWhenScoresVary(t *testing.T) {
	tenantID := uuid.New()
	videoID := uuid.New()
	sceneA := newScene(videoID)
	sceneB := newScene(videoID)
	vs := &fakeVectorStore{hits: map[string][]store.NearestHit{
		"dense_transcript": {
			{SceneID: sceneA.ID, Rank: 1, Similarity: 0.9},
			{SceneID: sceneB.ID, Rank: 2, Similarity: 0.5},
		},
	}}
	deps := Deps{
		Scenes: &fakeSceneRepo{byID: map[uuid.UUID]*video.Scene{
			sceneA.ID: sceneA,
			sceneB.ID: sceneB,
		}},
		Prefs:   &fakePreferenceRepo{},
		Objects: &fakeObjectStore{},
		Fetch: fetch.Deps{
			Vectors: vs,
			Lexical: &fakeLexicalStore{},
			Text:    &fakeTextEmbedder{vec: []float32{1, 0}},
			Image:   &fakeImageEmbedder{vec: []float32{1, 0}},
		},
	}

	resp, err := newTestService(t, deps, nil).Search(context.Background(), Request{
		TenantID:   tenantID,
		Query:      "a long descriptive sentence about the scene",
		VisualMode: "rerank",
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	require.NotNil(t, resp.Results[0].Debug.Rerank)
	assert.Empty(t, resp.Results[0].Debug.Rerank.SkippedReason)
	assert.InDelta(t, 0.3, resp.Results[0].Debug.Rerank.ClipWeightUsed, 1e-9)
}

func TestSearchSkipsMissingThumbnailKey(t *testing.T) {
	tenantID := uuid.New()
	videoID := uuid.New()
	scene := newScene(videoID)
	scene.ThumbnailKey = ""
	vs := &fakeVectorStore{hits: map[string][]store.NearestHit{
		"dense_transcript": {{SceneID: scene.ID, Rank: 1, Similarity: 0.9}},
	}}
	deps := Deps{
		Scenes:  &fakeSceneRepo{byID: map[uuid.UUID]*video.Scene{scene.ID: scene}},
		Prefs:   &fakePreferenceRepo{},
		Objects: &fakeObjectStore{signedURL: "https://signed.example/thumb"},
		Fetch: fetch.Deps{
			Vectors: vs,
			Lexical: &fakeLexicalStore{},
			Text:    &fakeTextEmbedder{vec: []float32{1, 0}},
			Image:   &fakeImageEmbedder{},
		},
	}

	resp, err := newTestService(t, deps, nil).Search(context.Background(), Request{
		TenantID: tenantID,
		Query:    "a long descriptive sentence about the scene",
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Empty(t, resp.Results[0].ThumbnailURL)
}

func TestSearchPersonPrefixEnablesPersonChannel(t *testing.T) {
	tenantID := uuid.New()
	videoID := uuid.New()
	scene := newScene(videoID)
	personVec := []float32{0.2, 0.3}
	vs := &fakeVectorStore{hits: map[string][]store.NearestHit{
		"clip_image": {{SceneID: scene.ID, Rank: 1, Similarity: 0.77}},
	}}
	deps := Deps{
		Scenes:  &fakeSceneRepo{byID: map[uuid.UUID]*video.Scene{scene.ID: scene}},
		Prefs:   &fakePreferenceRepo{},
		Objects: &fakeObjectStore{},
		Persons: &fakePersonLookup{persons: []plan.Person{
			{ID: "p1", DisplayName: "Alice", QueryEmbedding: personVec},
		}},
		Fetch: fetch.Deps{
			Vectors: vs,
			Lexical: &fakeLexicalStore{},
			Text:    &fakeTextEmbedder{vec: []float32{1, 0}},
			Image:   &fakeImageEmbedder{},
		},
	}

	resp, err := newTestService(t, deps, nil).Search(context.Background(), Request{
		TenantID: tenantID,
		Query:    "Alice at the whiteboard",
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, scene.ID.String(), resp.Results[0].SceneID)
}
