package config

import (
	"time"

	"github.com/heimdex/videosearch/internal/pkg/envutil"
	"github.com/heimdex/videosearch/internal/pkg/logger"
)

// Config is the single, immutable configuration surface for the process.
// It is built once at startup by Load; nothing downstream mutates it.
// Changing a value requires a restart (see Design Notes: no settings bag).
type Config struct {
	Postgres PostgresConfig
	Scene    SceneDetectorConfig
	Frame    FrameQualityConfig
	Visual   VisualSemanticsConfig
	Embed    EmbeddingConfig
	Trans    TranscriptionConfig
	Fusion   FusionConfig
	Query    QueryConfig
	Gating   GatingConfig
	Jobs     JobsConfig
	VectorProvider string

	Objects       ObjectStoreConfig
	Qdrant        QdrantStoreConfig
	TextEmbedder  TextEmbedderConfig
	Clip          ClipConfig
	VisualAnalyzer VisualAnalyzerConfig
	Lexical       LexicalConfig
	Media         MediaConfig
	Temporal      TemporalConfig
}

type TemporalConfig struct {
	Address   string
	Namespace string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	AutoRegisterNamespace bool
	NamespaceRetentionDays int

	DialTimeout   time.Duration
	DialMaxWait   time.Duration
	DialBackoff   time.Duration
	DialBackoffMax time.Duration
}

type ObjectStoreConfig struct {
	Bucket                string
	CredentialsFile       string
	SignerServiceAccount  string
}

type QdrantStoreConfig struct {
	URL        string
	Collection string
	VectorDim  int
}

type TextEmbedderConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
}

type ClipConfig struct {
	BaseURL    string
	HMACSecret string
	Model      string
	MaxRetries int
}

type VisualAnalyzerConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

type LexicalConfig struct {
	IndexPath string
}

type MediaConfig struct {
	WorkRoot string
}

type PostgresConfig struct {
	DSN string
}

type SceneDetectorConfig struct {
	Strategy             string // "adaptive" | "content"
	MinLenSeconds        float64
	AdaptiveThreshold    float64
	AdaptiveWindow       int
	AdaptiveMinContent   float64
	ContentThreshold     float64
}

type FrameQualityConfig struct {
	MaxKeyframesPerScene int
	BrightnessThreshold  float64
	BlurThreshold        float64
	// ThumbnailMaxWidth bounds the stored per-scene thumbnail; frames wider
	// than this are downscaled before upload.
	ThumbnailMaxWidth int
}

type VisualSemanticsConfig struct {
	Enabled                bool
	MinDurationS           float64
	TranscriptThreshold    int
	ForceOnNoTranscript    bool
	MaxFrameRetries        int
	IncludeEntities        bool
	IncludeActions         bool
	OCREnabled             bool
	OCRMaxTags             int
}

type EmbeddingConfig struct {
	TranscriptMaxLength int
	VisualMaxLength     int
	SummaryMaxLength    int
	VisualIncludeTags   bool
	SummaryEnabled      bool
	MaxRetries          int
	RetryDelay          time.Duration
	Version             string
	// ClipImageURLTTL bounds how long the signed URL handed to the remote
	// CLIP worker stays valid; it only needs to survive one embedding call.
	ClipImageURLTTL time.Duration
}

type TranscriptionConfig struct {
	MinCharsForSpeech    int
	MinSpeechCharRatio   float64
	MaxNoSpeechProb      float64
	MinSpeechSegRatio    float64
	MusicMarkers         []string
	BannedPhrases        []string
	ContextPadSeconds    float64
	MinCharsFloor        int
}

type FusionConfig struct {
	Method                string // "minmax_mean" | "rrf"
	RRFK                  int
	MinMaxEps             float64
	PercentileClipEnabled bool
	PercentileClipLo      float64
	PercentileClipHi      float64
	CandidateKTranscript  int
	CandidateKVisual      int
	CandidateKSummary     int
	CandidateKLexical     int
	ThresholdTranscript   float64
	ThresholdVisual       float64
	ThresholdSummary      float64
	WeightTranscript      float64
	WeightVisual          float64
	WeightSummary         float64
	WeightLexical         float64
	MaxVisualWeight       float64
	MinLexicalWeight      float64
	MultiDenseTimeout     time.Duration
}

type QueryConfig struct {
	VisualMode              string
	RerankCandidatePoolSize int
	RerankClipWeight        float64
	RerankMinScoreRange     float64
	RouterBoostWeight       float64
	RouterReduceWeight      float64
}

type GatingConfig struct {
	EnableDisplayScoreCalibration  bool
	DisplayScoreMethod             string // "exp_squash" | "pctl_ceiling"
	DisplayScoreMaxCap             float64
	DisplayScoreAlpha              float64
	DisplayScorePercentile         float64
	EnableLookupSoftGating         bool
	LookupLexicalMinHits           int
	EnableLookupAbsoluteDisplay    bool
	LookupAbsSimFloor              float64
	LookupAbsSimCeil                float64
	LookupBestGuessMaxCap          float64
}

type JobsConfig struct {
	MaxSceneWorkers   int
	MaxAPIConcurrency int
	MinBackoff        time.Duration
	MaxBackoff        time.Duration
	MaxRetries        int
	IngestTimeLimit   time.Duration
	ExportTimeLimit   time.Duration
	PersonPhotoLimit  time.Duration
}

func Load(log *logger.Logger) (*Config, error) {
	cfg := &Config{
		Postgres: PostgresConfig{
			DSN: envutil.String("POSTGRES_DSN", ""),
		},
		Scene: SceneDetectorConfig{
			Strategy:           envutil.String("SCENE_DETECTOR", "adaptive"),
			MinLenSeconds:      envutil.Float("SCENE_MIN_LEN_SECONDS", 2.0),
			AdaptiveThreshold:  envutil.Float("SCENE_ADAPTIVE_THRESHOLD", 27.0),
			AdaptiveWindow:     envutil.Int("SCENE_ADAPTIVE_WINDOW", 5),
			AdaptiveMinContent: envutil.Float("SCENE_ADAPTIVE_MIN_CONTENT", 15.0),
			ContentThreshold:   envutil.Float("SCENE_CONTENT_THRESHOLD", 30.0),
		},
		Frame: FrameQualityConfig{
			MaxKeyframesPerScene: envutil.Int("MAX_KEYFRAMES_PER_SCENE", 5),
			BrightnessThreshold:  envutil.Float("VISUAL_BRIGHTNESS_THRESHOLD", 20.0),
			BlurThreshold:        envutil.Float("VISUAL_BLUR_THRESHOLD", 30.0),
			ThumbnailMaxWidth:    envutil.Int("THUMBNAIL_MAX_WIDTH", 640),
		},
		Visual: VisualSemanticsConfig{
			Enabled:             envutil.Bool("VISUAL_SEMANTICS_ENABLED", true),
			MinDurationS:        envutil.Float("VISUAL_SEMANTICS_MIN_DURATION_S", 1.5),
			TranscriptThreshold: envutil.Int("VISUAL_SEMANTICS_TRANSCRIPT_THRESHOLD", 200),
			ForceOnNoTranscript: envutil.Bool("VISUAL_SEMANTICS_FORCE_ON_NO_TRANSCRIPT", true),
			MaxFrameRetries:     envutil.Int("VISUAL_SEMANTICS_MAX_FRAME_RETRIES", 2),
			IncludeEntities:     envutil.Bool("VISUAL_SEMANTICS_INCLUDE_ENTITIES", true),
			IncludeActions:      envutil.Bool("VISUAL_SEMANTICS_INCLUDE_ACTIONS", true),
			OCREnabled:          envutil.Bool("VISUAL_OCR_ENABLED", false),
			OCRMaxTags:          envutil.Int("VISUAL_OCR_MAX_TAGS", 10),
		},
		Embed: EmbeddingConfig{
			TranscriptMaxLength: envutil.Int("EMBEDDING_TRANSCRIPT_MAX_LENGTH", 2000),
			VisualMaxLength:     envutil.Int("EMBEDDING_VISUAL_MAX_LENGTH", 1000),
			SummaryMaxLength:    envutil.Int("EMBEDDING_SUMMARY_MAX_LENGTH", 1000),
			VisualIncludeTags:   envutil.Bool("EMBEDDING_VISUAL_INCLUDE_TAGS", true),
			SummaryEnabled:      envutil.Bool("EMBEDDING_SUMMARY_ENABLED", false),
			MaxRetries:          envutil.Int("EMBEDDING_MAX_RETRIES", 3),
			RetryDelay:          envutil.Duration("EMBEDDING_RETRY_DELAY", 500*time.Millisecond),
			Version:             envutil.String("EMBEDDING_VERSION", "v1"),
			ClipImageURLTTL:     envutil.Duration("EMBEDDING_CLIP_IMAGE_URL_TTL", 15*time.Minute),
		},
		Trans: TranscriptionConfig{
			MinCharsForSpeech:  envutil.Int("TRANSCRIPTION_MIN_CHARS_FOR_SPEECH", 20),
			MinSpeechCharRatio: envutil.Float("TRANSCRIPTION_MIN_SPEECH_CHAR_RATIO", 0.4),
			MaxNoSpeechProb:    envutil.Float("TRANSCRIPTION_MAX_NO_SPEECH_PROB", 0.6),
			MinSpeechSegRatio:  envutil.Float("TRANSCRIPTION_MIN_SPEECH_SEGMENTS_RATIO", 0.5),
			MusicMarkers:       envutil.StringSlice("TRANSCRIPTION_MUSIC_MARKERS", []string{"[music]", "[Music]", "♪"}),
			BannedPhrases:      envutil.StringSlice("TRANSCRIPTION_BANNED_PHRASES", []string{"thank you for watching"}),
			ContextPadSeconds:  envutil.Float("TRANSCRIPT_CONTEXT_PAD_SECONDS", 1.5),
			MinCharsFloor:      envutil.Int("TRANSCRIPT_MIN_CHARS_FLOOR", 10),
		},
		Fusion: FusionConfig{
			Method:                envutil.String("FUSION_METHOD", "rrf"),
			RRFK:                  envutil.Int("RRF_K", 60),
			MinMaxEps:             envutil.Float("FUSION_MINMAX_EPS", 1e-9),
			PercentileClipEnabled: envutil.Bool("FUSION_PERCENTILE_CLIP_ENABLED", false),
			PercentileClipLo:      envutil.Float("FUSION_PERCENTILE_CLIP_LO", 0.02),
			PercentileClipHi:      envutil.Float("FUSION_PERCENTILE_CLIP_HI", 0.98),
			CandidateKTranscript:  envutil.Int("CANDIDATE_K_TRANSCRIPT", 50),
			CandidateKVisual:      envutil.Int("CANDIDATE_K_VISUAL", 50),
			CandidateKSummary:     envutil.Int("CANDIDATE_K_SUMMARY", 50),
			CandidateKLexical:     envutil.Int("CANDIDATE_K_LEXICAL", 50),
			ThresholdTranscript:   envutil.Float("THRESHOLD_TRANSCRIPT", 0.2),
			ThresholdVisual:       envutil.Float("THRESHOLD_VISUAL", 0.2),
			ThresholdSummary:      envutil.Float("THRESHOLD_SUMMARY", 0.2),
			WeightTranscript:      envutil.Float("WEIGHT_TRANSCRIPT", 0.4),
			WeightVisual:          envutil.Float("WEIGHT_VISUAL", 0.3),
			WeightSummary:         envutil.Float("WEIGHT_SUMMARY", 0.1),
			WeightLexical:         envutil.Float("WEIGHT_LEXICAL", 0.2),
			MaxVisualWeight:       envutil.Float("MAX_VISUAL_WEIGHT", 0.8),
			MinLexicalWeight:      envutil.Float("MIN_LEXICAL_WEIGHT", 0.05),
			MultiDenseTimeout:     envutil.Duration("MULTI_DENSE_TIMEOUT", 2*time.Second),
		},
		Query: QueryConfig{
			VisualMode:              envutil.String("VISUAL_MODE", "auto"),
			RerankCandidatePoolSize: envutil.Int("RERANK_CANDIDATE_POOL_SIZE", 50),
			RerankClipWeight:        envutil.Float("RERANK_CLIP_WEIGHT", 0.3),
			RerankMinScoreRange:     envutil.Float("RERANK_MIN_SCORE_RANGE", 0.05),
			RouterBoostWeight:       envutil.Float("VISUAL_ROUTER_BOOST_WEIGHT", 0.15),
			RouterReduceWeight:      envutil.Float("VISUAL_ROUTER_REDUCE_WEIGHT", -0.20),
		},
		Gating: GatingConfig{
			EnableDisplayScoreCalibration: envutil.Bool("ENABLE_DISPLAY_SCORE_CALIBRATION", false),
			DisplayScoreMethod:            envutil.String("DISPLAY_SCORE_METHOD", "exp_squash"),
			DisplayScoreMaxCap:            envutil.Float("DISPLAY_SCORE_MAX_CAP", 0.97),
			DisplayScoreAlpha:             envutil.Float("DISPLAY_SCORE_ALPHA", 3.0),
			DisplayScorePercentile:        envutil.Float("DISPLAY_SCORE_PERCENTILE", 0.90),
			EnableLookupSoftGating:        envutil.Bool("ENABLE_LOOKUP_SOFT_GATING", true),
			LookupLexicalMinHits:          envutil.Int("LOOKUP_LEXICAL_MIN_HITS", 1),
			EnableLookupAbsoluteDisplay:   envutil.Bool("ENABLE_LOOKUP_ABSOLUTE_DISPLAY_SCORE", false),
			LookupAbsSimFloor:             envutil.Float("LOOKUP_ABS_SIM_FLOOR", 0.20),
			LookupAbsSimCeil:              envutil.Float("LOOKUP_ABS_SIM_CEIL", 0.55),
			LookupBestGuessMaxCap:         envutil.Float("LOOKUP_BEST_GUESS_MAX_CAP", 0.65),
		},
		Jobs: JobsConfig{
			MaxSceneWorkers:   envutil.Int("MAX_SCENE_WORKERS", 4),
			MaxAPIConcurrency: envutil.Int("MAX_API_CONCURRENCY", 8),
			MinBackoff:        envutil.Duration("JOB_MIN_BACKOFF", 2*time.Second),
			MaxBackoff:        envutil.Duration("JOB_MAX_BACKOFF", 2*time.Minute),
			MaxRetries:        envutil.Int("JOB_MAX_RETRIES", 5),
			IngestTimeLimit:   envutil.Duration("JOB_INGEST_TIME_LIMIT", 45*time.Minute),
			ExportTimeLimit:   envutil.Duration("JOB_EXPORT_TIME_LIMIT", 10*time.Minute),
			PersonPhotoLimit:  envutil.Duration("JOB_PERSON_PHOTO_TIME_LIMIT", 2*time.Minute),
		},
		VectorProvider: envutil.String("VECTOR_PROVIDER", "qdrant"),
		Objects: ObjectStoreConfig{
			Bucket:               envutil.String("GCS_BUCKET", ""),
			CredentialsFile:      envutil.String("GCS_CREDENTIALS_FILE", ""),
			SignerServiceAccount: envutil.String("GCS_SIGNER_SERVICE_ACCOUNT", ""),
		},
		Qdrant: QdrantStoreConfig{
			URL:        envutil.String("QDRANT_URL", "http://localhost:6333"),
			Collection: envutil.String("QDRANT_COLLECTION", "videosearch"),
			VectorDim:  envutil.Int("QDRANT_VECTOR_DIM", 1536),
		},
		TextEmbedder: TextEmbedderConfig{
			BaseURL:    envutil.String("TEXT_EMBEDDER_BASE_URL", "https://api.openai.com/v1"),
			APIKey:     envutil.String("TEXT_EMBEDDER_API_KEY", ""),
			Model:      envutil.String("TEXT_EMBEDDER_MODEL", "text-embedding-3-small"),
			Dimensions: envutil.Int("TEXT_EMBEDDER_DIMENSIONS", 1536),
			MaxRetries: envutil.Int("TEXT_EMBEDDER_MAX_RETRIES", 3),
		},
		Clip: ClipConfig{
			BaseURL:    envutil.String("CLIP_BASE_URL", ""),
			HMACSecret: envutil.String("CLIP_HMAC_SECRET", ""),
			Model:      envutil.String("CLIP_MODEL", "clip-vit-b32"),
			MaxRetries: envutil.Int("CLIP_MAX_RETRIES", 3),
		},
		VisualAnalyzer: VisualAnalyzerConfig{
			BaseURL:    envutil.String("VISUAL_ANALYZER_BASE_URL", ""),
			APIKey:     envutil.String("VISUAL_ANALYZER_API_KEY", ""),
			Model:      envutil.String("VISUAL_ANALYZER_MODEL", "gpt-4o-mini"),
			MaxRetries: envutil.Int("VISUAL_ANALYZER_MAX_RETRIES", 3),
			Timeout:    envutil.Duration("VISUAL_ANALYZER_TIMEOUT", 30*time.Second),
		},
		Lexical: LexicalConfig{
			IndexPath: envutil.String("LEXICAL_INDEX_PATH", "./data/lexical.bleve"),
		},
		Media: MediaConfig{
			WorkRoot: envutil.String("MEDIA_WORK_ROOT", "/tmp/heimdex-media"),
		},
		Temporal: TemporalConfig{
			Address:                envutil.String("TEMPORAL_ADDRESS", ""),
			Namespace:              envutil.String("TEMPORAL_NAMESPACE", "videosearch"),
			ClientCertPath:         envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
			ClientKeyPath:          envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
			ClientCAPath:           envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),
			AutoRegisterNamespace:  envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
			NamespaceRetentionDays: envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", 7),
			DialTimeout:            envutil.Duration("TEMPORAL_DIAL_TIMEOUT", 5*time.Second),
			DialMaxWait:            envutil.Duration("TEMPORAL_DIAL_MAX_WAIT", 60*time.Second),
			DialBackoff:            envutil.Duration("TEMPORAL_DIAL_BACKOFF", 250*time.Millisecond),
			DialBackoffMax:         envutil.Duration("TEMPORAL_DIAL_BACKOFF_MAX", 5*time.Second),
		},
	}
	log.Info("config loaded", "vector_provider", cfg.VectorProvider, "fusion_method", cfg.Fusion.Method)
	return cfg, nil
}
