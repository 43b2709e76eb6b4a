// Package appctx builds the process-wide dependency graph: one Postgres
// pool, one set of store adapters, the multi-channel embedder, the sidecar
// builder, the search service, and (when Temporal is configured) the job
// dispatcher and worker. A single ordered Build step owns everything on
// one struct; Close releases in reverse order.
//
// Nothing here is mutable package-level state: every value is constructed
// from *config.Config and handed to callers (cmd/ingest, cmd/search, cmd/worker) to
// wire into their own process.
package appctx

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/heimdex/videosearch/internal/config"
	"github.com/heimdex/videosearch/internal/data/db"
	videorepo "github.com/heimdex/videosearch/internal/data/repos/video"
	"github.com/heimdex/videosearch/internal/ingest/embed"
	"github.com/heimdex/videosearch/internal/ingest/media"
	"github.com/heimdex/videosearch/internal/ingest/sidecar"
	"github.com/heimdex/videosearch/internal/jobs/orchestrator"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/clip"
	"github.com/heimdex/videosearch/internal/platform/lexicalstore"
	"github.com/heimdex/videosearch/internal/platform/objectstore"
	"github.com/heimdex/videosearch/internal/platform/store"
	"github.com/heimdex/videosearch/internal/platform/temporalclient"
	"github.com/heimdex/videosearch/internal/platform/textembedder"
	"github.com/heimdex/videosearch/internal/platform/transcriber"
	"github.com/heimdex/videosearch/internal/platform/vectorstore"
	"github.com/heimdex/videosearch/internal/platform/visionocr"
	"github.com/heimdex/videosearch/internal/platform/visualanalyzer"
	"github.com/heimdex/videosearch/internal/search/fetch"
	"github.com/heimdex/videosearch/internal/search/service"
)

// App holds every long-lived dependency one process (ingest, server or
// worker) might need. All three cmd/ entrypoints build the same App and
// simply use a different subset of its fields.
type App struct {
	Config *config.Config
	Log    *logger.Logger

	Postgres *db.PostgresService

	Videos videorepo.VideoRepo
	Scenes videorepo.SceneRepo
	Prefs  videorepo.PreferenceRepo
	Jobs   videorepo.JobRepo

	Objects store.ObjectStore
	Vectors store.VectorStore
	Lexical store.LexicalStore

	Transcriber    store.Transcriber
	VisualAnalyzer store.VisualAnalyzer
	OCR            store.KeyframeOCR // nil unless VISUAL_OCR_ENABLED
	TextEmbedder   store.TextEmbedder
	ImageEmbedder  store.ImageEmbedder

	Embedder *embed.Embedder
	Media    media.Tools
	Sidecar  *sidecar.Builder

	Search *service.Service

	Temporal   temporalsdkclient.Client // nil when TEMPORAL_ADDRESS is unset
	Dispatcher *orchestrator.Dispatcher
	Activities *orchestrator.Activities

	transcriberClient *transcriber.Client
	ocrClient         *visionocr.Client
}

// Build runs every constructor in dependency order and returns an App
// ready to serve requests or run the job worker. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	pg, err := db.NewPostgresService(log, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("appctx: postgres: %w", err)
	}
	a.Postgres = pg
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		return nil, fmt.Errorf("appctx: automigrate: %w", err)
	}
	if err := db.EnsureVideoIndexes(pg.DB()); err != nil {
		return nil, fmt.Errorf("appctx: video indexes: %w", err)
	}

	a.Videos = videorepo.NewVideoRepo(pg.DB(), log)
	a.Scenes = videorepo.NewSceneRepo(pg.DB(), log)
	a.Prefs = videorepo.NewPreferenceRepo(pg.DB(), log)
	a.Jobs = videorepo.NewJobRepo(pg.DB(), log)

	objStore, err := objectstore.New(ctx, objectstore.Config{
		Bucket:               cfg.Objects.Bucket,
		CredentialsFile:      cfg.Objects.CredentialsFile,
		SignerServiceAccount: cfg.Objects.SignerServiceAccount,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("appctx: object store: %w", err)
	}
	a.Objects = objStore

	a.Vectors = buildVectorStore(cfg, log)

	lexStore := lexicalstore.New(cfg.Lexical.IndexPath, log)
	if err := lexStore.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("appctx: lexical index: %w", err)
	}
	a.Lexical = lexStore

	trans, err := transcriber.New(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("appctx: transcriber: %w", err)
	}
	a.Transcriber = trans
	a.transcriberClient = trans

	if cfg.Visual.OCREnabled {
		ocr, err := visionocr.New(ctx, log)
		if err != nil {
			return nil, fmt.Errorf("appctx: vision ocr: %w", err)
		}
		a.OCR = ocr
		a.ocrClient = ocr
	}

	a.VisualAnalyzer = visualanalyzer.New(visualanalyzer.Config{
		BaseURL:    cfg.VisualAnalyzer.BaseURL,
		APIKey:     cfg.VisualAnalyzer.APIKey,
		Model:      cfg.VisualAnalyzer.Model,
		MaxRetries: cfg.VisualAnalyzer.MaxRetries,
		Timeout:    cfg.VisualAnalyzer.Timeout,
	}, log)

	textClient := textembedder.New(textembedder.Config{
		BaseURL:    cfg.TextEmbedder.BaseURL,
		APIKey:     cfg.TextEmbedder.APIKey,
		Model:      cfg.TextEmbedder.Model,
		Dimensions: cfg.TextEmbedder.Dimensions,
		MaxRetries: cfg.TextEmbedder.MaxRetries,
	}, log)
	a.TextEmbedder = textClient

	clipClient := clip.New(clip.Config{
		BaseURL:    cfg.Clip.BaseURL,
		HMACSecret: cfg.Clip.HMACSecret,
		Model:      cfg.Clip.Model,
		MaxRetries: cfg.Clip.MaxRetries,
	}, log)
	a.ImageEmbedder = clipClient

	a.Embedder = embed.New(a.TextEmbedder, a.ImageEmbedder, embed.Config{
		TranscriptMaxLength: cfg.Embed.TranscriptMaxLength,
		VisualMaxLength:     cfg.Embed.VisualMaxLength,
		SummaryMaxLength:    cfg.Embed.SummaryMaxLength,
		VisualIncludeTags:   cfg.Embed.VisualIncludeTags,
		SummaryEnabled:      cfg.Embed.SummaryEnabled,
		MaxRetries:          cfg.Embed.MaxRetries,
		RetryDelay:          cfg.Embed.RetryDelay,
		Version:             cfg.Embed.Version,
	}, log)

	a.Media = media.New(cfg.Media.WorkRoot)

	a.Sidecar = sidecar.New(
		sidecar.Repos{Video: a.Videos, Scene: a.Scenes},
		sidecar.Adapters{
			Media:       a.Media,
			Transcriber: a.Transcriber,
			Visual:      a.VisualAnalyzer,
			OCR:         a.OCR,
			Objects:     a.Objects,
			Vectors:     a.Vectors,
			Lexical:     a.Lexical,
		},
		a.Embedder, cfg, log,
	)

	a.Search = service.New(service.Deps{
		Scenes:  a.Scenes,
		Prefs:   a.Prefs,
		Objects: a.Objects,
		Persons: nil, // person enrollment lives outside this core; wire a PersonLookup adapter to enable prefix parsing
		Fetch: fetch.Deps{
			Vectors: a.Vectors,
			Lexical: a.Lexical,
			Text:    a.TextEmbedder,
			Image:   a.ImageEmbedder,
		},
	}, cfg, log)

	tc, err := temporalclient.New(cfg.Temporal, log)
	if err != nil {
		return nil, fmt.Errorf("appctx: temporal: %w", err)
	}
	a.Temporal = tc
	if tc != nil {
		a.Dispatcher = orchestrator.NewDispatcher(tc, a.Jobs, log)
		a.Activities = &orchestrator.Activities{
			Log:     log,
			Videos:  a.Videos,
			Objects: a.Objects,
			Sidecar: a.Sidecar,
		}
	}

	return a, nil
}

func buildVectorStore(cfg *config.Config, log *logger.Logger) store.VectorStore {
	if cfg.VectorProvider == "local" {
		return vectorstore.NewLocalStore(log)
	}
	return vectorstore.NewQdrantStore(log, vectorstore.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		Collection: cfg.Qdrant.Collection,
		VectorDim:  cfg.Qdrant.VectorDim,
	})
}

// Close releases everything Build opened. Safe to call on a partially
// built App (e.g. from a deferred call right after a failed Build).
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Temporal != nil {
		a.Temporal.Close()
	}
	if a.ocrClient != nil {
		_ = a.ocrClient.Close()
	}
	if a.transcriberClient != nil {
		_ = a.transcriberClient.Close()
	}
	if a.Postgres != nil {
		if sqlDB, err := a.Postgres.DB().DB(); err == nil {
			sqlDB.Close()
		}
	}
}
