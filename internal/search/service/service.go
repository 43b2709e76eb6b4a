// Package service wires the query planner, weight resolver, candidate
// fetchers, fusion engine, reranker, and gating/calibration into the
// single Search entry point: one function that walks its sub-stages in
// order, never aborting on a degraded stage, returning a single response
// value with a transparent per-channel score breakdown.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/heimdex/videosearch/internal/config"
	videorepo "github.com/heimdex/videosearch/internal/data/repos/video"
	"github.com/heimdex/videosearch/internal/domain/video"
	apperr "github.com/heimdex/videosearch/internal/pkg/errors"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
	"github.com/heimdex/videosearch/internal/search/fetch"
	"github.com/heimdex/videosearch/internal/search/fusion"
	"github.com/heimdex/videosearch/internal/search/gating"
	"github.com/heimdex/videosearch/internal/search/plan"
	"github.com/heimdex/videosearch/internal/search/rerank"
	"github.com/heimdex/videosearch/internal/search/weights"
)

// PersonLookup resolves a tenant's enrolled persons for prefix matching.
// The person subsystem itself lives outside this core (see
// internal/domain/video.Person's doc comment); a nil PersonLookup simply
// disables person-prefix parsing.
type PersonLookup interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]plan.Person, error)
}

type Deps struct {
	Scenes  videorepo.SceneRepo
	Prefs   videorepo.PreferenceRepo
	Objects store.ObjectStore
	Persons PersonLookup
	Fetch   fetch.Deps
}

type Service struct {
	deps Deps
	cfg  *config.Config
	log  *logger.Logger
	now  func() time.Time
}

func New(deps Deps, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{deps: deps, cfg: cfg, log: log.With("service", "SearchService"), now: time.Now}
}

type Request struct {
	TenantID            uuid.UUID
	Query               string
	VideoID             *uuid.UUID
	Limit               int
	Threshold           float64
	FusionMethod        string
	VisualMode          string
	ChannelWeights      map[string]float64 // transcript/visual/summary/lexical, nil = not provided
	UseSavedPreferences bool
}

type PerChannelDebug struct {
	Rank       int
	Raw        float64
	Normalized float64
	Weight     float64
}

type RerankDebug struct {
	ClipWeightUsed float64
	ClipScoreRange float64
	SkippedReason  string
}

type Debug struct {
	PerChannel       map[string]PerChannelDebug
	FusionMethod     string
	WeightsApplied   map[string]float64
	WeightsSource    string
	ChannelsDisabled []string
	Clamped          bool
	Rerank           *RerankDebug
}

type Result struct {
	SceneID           string
	VideoID           string
	Index             int
	StartS            float64
	EndS              float64
	TranscriptSegment string
	VisualSummary     string
	VisualDescription string
	Tags              []string
	ThumbnailURL      string
	Score             float64
	DisplayScore      *float64
	MatchQuality      string
	Debug             *Debug
}

type Response struct {
	Query     string
	Total     int
	LatencyMS int64
	Results   []Result
}

// Search runs one request end to end. It degrades gracefully at every
// stage (a disabled channel, a failed rerank, a missing saved preference)
// rather than failing the whole request; it returns an error only when the
// request itself is invalid or loading the result scene rows fails.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	start := s.now()

	if req.Query == "" || len([]rune(req.Query)) > 1000 {
		return nil, apperr.New(apperr.InputValidation, "invalid_query", fmt.Errorf("query must be 1..1000 characters"))
	}
	if req.ChannelWeights != nil {
		if err := weights.ValidateWeights(req.ChannelWeights); err != nil {
			return nil, apperr.New(apperr.InputValidation, "invalid_channel_weights", err)
		}
	}
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var persons []plan.Person
	if s.deps.Persons != nil {
		if p, err := s.deps.Persons.ListByTenant(ctx, req.TenantID); err != nil {
			s.log.Warn("person lookup failed", "error", err)
		} else {
			persons = p
		}
	}
	personMatch, queryRest := plan.ParsePersonPrefix(req.Query, persons)
	if personMatch != nil && personMatch.Rest != "" {
		queryRest = personMatch.Rest
	}
	lang := plan.DetectLanguage(queryRest)
	intent := plan.ClassifyIntent(queryRest)

	visualMode := req.VisualMode
	explicitVisualMode := visualMode != "" && visualMode != "auto"
	if visualMode == "" {
		visualMode = s.cfg.Query.VisualMode
	}
	var routerAdj float64
	if visualMode == "auto" {
		rr := plan.RouteVisualIntent(queryRest, s.cfg.Query.RouterBoostWeight, s.cfg.Query.RouterReduceWeight)
		visualMode = string(rr.SuggestedMode)
		routerAdj = rr.WeightAdjustment
	}

	resolution := s.resolveWeights(ctx, req, visualMode)
	if !explicitVisualMode && routerAdj != 0 {
		adjusted := make(weights.Weights, len(resolution.Resolved))
		for k, v := range resolution.Resolved {
			adjusted[k] = v
		}
		adjusted[weights.ChanVisual] = clamp(adjusted[weights.ChanVisual]+routerAdj, 0, 1)
		resolution.Resolved = weights.Normalize(adjusted)
		resolution.Applied = weights.ToFusionKeys(resolution.Resolved)
	}

	channels := s.buildChannelConfigs(visualMode, req.Threshold)
	var personVec []float32
	if personMatch != nil {
		personVec = personMatch.QueryEmbedding
		if len(personVec) > 0 {
			channels[fetch.ChanPerson] = fetch.ChannelConfig{TopK: s.cfg.Fusion.CandidateKVisual}
		}
	}

	outcome := fetch.FetchAll(ctx, s.deps.Fetch, fetch.Request{
		TenantID:       req.TenantID,
		VideoID:        req.VideoID,
		QueryText:      queryRest,
		Language:       lang,
		PersonQueryVec: personVec,
		Channels:       channels,
		Timeout:        s.cfg.Fusion.MultiDenseTimeout,
	}, s.log)

	fusionMethod := req.FusionMethod
	if fusionMethod == "" {
		fusionMethod = s.cfg.Fusion.Method
	}

	fused, appliedWeights, fusionMethod := s.fuse(outcome.Lists, resolution, fusionMethod)

	var rerankDebug *RerankDebug
	if visualMode == "rerank" {
		fused, rerankDebug = s.rerank(ctx, fused, queryRest, req.TenantID)
	}

	matchQuality := ""
	if s.cfg.Gating.EnableLookupSoftGating && intent == plan.IntentLookup {
		lexicalIDs := sceneIDStrings(outcome.Lists[fetch.ChanLexical])
		gate := gating.Gate(lexicalIDs, s.cfg.Gating.LookupLexicalMinHits)
		matchQuality = string(gate.MatchQuality)
		fused = restrictFused(fused, gate)
	}

	if len(fused) > limit {
		fused = fused[:limit]
	}

	displayScores := s.calibrate(fused, matchQuality)

	results, err := s.hydrate(ctx, req.TenantID, fused, displayScores, matchQuality, appliedWeights, fusionMethod, resolution, outcome.Disabled, rerankDebug)
	if err != nil {
		return nil, err
	}

	return &Response{
		Query:     req.Query,
		Total:     len(results),
		LatencyMS: s.now().Sub(start).Milliseconds(),
		Results:   results,
	}, nil
}

func (s *Service) resolveWeights(ctx context.Context, req Request, visualMode string) weights.Resolution {
	var reqWeights weights.Weights
	if req.ChannelWeights != nil {
		reqWeights = weights.Weights{
			weights.ChanTranscript: req.ChannelWeights["transcript"],
			weights.ChanVisual:     req.ChannelWeights["visual"],
			weights.ChanSummary:    req.ChannelWeights["summary"],
			weights.ChanLexical:    req.ChannelWeights["lexical"],
		}
	}

	var savedWeights weights.Weights
	if pref, err := s.deps.Prefs.GetByTenantID(ctx, nil, req.TenantID); err == nil && pref != nil {
		savedWeights = weights.Weights{
			weights.ChanTranscript: pref.Weights.Transcript,
			weights.ChanVisual:     pref.Weights.Visual,
			weights.ChanSummary:    pref.Weights.Summary,
			weights.ChanLexical:    pref.Weights.Lexical,
		}
	}

	defaults := weights.Weights{
		weights.ChanTranscript: s.cfg.Fusion.WeightTranscript,
		weights.ChanVisual:     s.cfg.Fusion.WeightVisual,
		weights.ChanSummary:    s.cfg.Fusion.WeightSummary,
		weights.ChanLexical:    s.cfg.Fusion.WeightLexical,
	}

	return weights.Resolve(reqWeights, savedWeights, defaults, req.UseSavedPreferences, visualMode, true, weights.Guardrails{
		MaxVisualWeight:  s.cfg.Fusion.MaxVisualWeight,
		MinLexicalWeight: s.cfg.Fusion.MinLexicalWeight,
	})
}

// buildChannelConfigs decides which channels C8 fetches. The clip channel
// only runs as a direct recall channel in "recall" mode; in "rerank" mode
// CLIP scoring happens after fusion via a batch call, and in "skip"
// mode it never runs. A request-supplied threshold overrides the
// per-channel config thresholds for the dense channels.
func (s *Service) buildChannelConfigs(visualMode string, reqThreshold float64) map[string]fetch.ChannelConfig {
	thresholdOr := func(configured float64) float64 {
		if reqThreshold > 0 {
			return reqThreshold
		}
		return configured
	}
	channels := map[string]fetch.ChannelConfig{
		fetch.ChanDenseTranscript: {TopK: s.cfg.Fusion.CandidateKTranscript, Threshold: thresholdOr(s.cfg.Fusion.ThresholdTranscript)},
		fetch.ChanDenseVisual:     {TopK: s.cfg.Fusion.CandidateKVisual, Threshold: thresholdOr(s.cfg.Fusion.ThresholdVisual)},
		fetch.ChanLexical:         {TopK: s.cfg.Fusion.CandidateKLexical},
	}
	if s.cfg.Embed.SummaryEnabled {
		channels[fetch.ChanDenseSummary] = fetch.ChannelConfig{TopK: s.cfg.Fusion.CandidateKSummary, Threshold: thresholdOr(s.cfg.Fusion.ThresholdSummary)}
	}
	if visualMode == "recall" {
		channels[fetch.ChanClip] = fetch.ChannelConfig{TopK: s.cfg.Query.RerankCandidatePoolSize}
	}
	return channels
}

// fuse picks the degrade-to-single-family fallback when only one channel
// family returned candidates, otherwise runs the requested fusion method.
// clip/person contribute by rank only under RRF; under minmax_mean they
// ride the resolved visual weight, since neither has its own tier in the
// request's channel_weights shape.
func (s *Service) fuse(lists fusion.ChannelLists, resolution weights.Resolution, fusionMethod string) ([]fusion.FusedCandidate, map[string]float64, string) {
	switch {
	case !fusion.HasLexical(lists) && fusion.HasDense(lists):
		return fusion.DenseOnly(lists), resolution.Applied, "rrf"
	case fusion.HasLexical(lists) && !fusion.HasDense(lists):
		return fusion.LexicalOnly(lists[fetch.ChanLexical]), resolution.Applied, "rrf"
	}

	if fusionMethod == "rrf" {
		return fusion.RRF(lists, s.cfg.Fusion.RRFK), resolution.Applied, "rrf"
	}

	applied := make(map[string]float64, len(resolution.Applied)+2)
	for k, v := range resolution.Applied {
		applied[k] = v
	}
	if _, ok := lists[fetch.ChanClip]; ok {
		applied[fetch.ChanClip] = applied[fetch.ChanDenseVisual]
	}
	if _, ok := lists[fetch.ChanPerson]; ok {
		applied[fetch.ChanPerson] = applied[fetch.ChanDenseVisual]
	}
	return fusion.MinMaxMean(lists, applied, s.cfg.Fusion.MinMaxEps), applied, "minmax_mean"
}

func (s *Service) rerank(ctx context.Context, base []fusion.FusedCandidate, queryText string, tenantID uuid.UUID) ([]fusion.FusedCandidate, *RerankDebug) {
	poolSize := s.cfg.Query.RerankCandidatePoolSize
	if poolSize <= 0 || poolSize > len(base) {
		poolSize = len(base)
	}
	pool := base[:poolSize]
	if len(pool) == 0 {
		return base, nil
	}

	ids := make([]uuid.UUID, 0, len(pool))
	for _, c := range pool {
		if id, err := uuid.Parse(c.SceneID); err == nil {
			ids = append(ids, id)
		}
	}

	clipCtx, cancel := context.WithTimeout(ctx, s.cfg.Fusion.MultiDenseTimeout)
	clipTextVec, err := s.deps.Fetch.Image.EmbedTextForImageSpace(clipCtx, queryText)
	cancel()
	if err != nil {
		s.log.Warn("rerank clip-text embedding failed, skipping rerank", "error", err)
		return base, &RerankDebug{SkippedReason: "clip_text_embed_failed"}
	}

	scoreCtx, cancel := context.WithTimeout(ctx, s.cfg.Fusion.MultiDenseTimeout)
	scores, err := s.deps.Fetch.Vectors.BatchScore(scoreCtx, "clip_image", clipTextVec, ids, tenantID)
	cancel()
	if err != nil {
		s.log.Warn("rerank batch clip score failed, skipping rerank", "error", err)
		return base, &RerankDebug{SkippedReason: "clip_score_failed"}
	}

	baseCands := make([]rerank.BaseCandidate, 0, len(pool))
	for _, c := range pool {
		baseCands = append(baseCands, rerank.BaseCandidate{SceneID: c.SceneID, Score: c.Score})
	}
	clipScores := make(map[string]float64, len(scores))
	for id, v := range scores {
		clipScores[id.String()] = v
	}

	outcome := rerank.Rerank(baseCands, clipScores, s.cfg.Query.RerankClipWeight, s.cfg.Query.RerankMinScoreRange)
	if !outcome.Applied {
		return base, &RerankDebug{SkippedReason: outcome.SkippedReason}
	}

	byID := make(map[string]fusion.FusedCandidate, len(pool))
	for _, c := range pool {
		byID[c.SceneID] = c
	}
	reranked := make([]fusion.FusedCandidate, 0, len(base))
	for _, r := range outcome.Results {
		fc := byID[r.SceneID]
		fc.Score = r.FinalScore
		reranked = append(reranked, fc)
	}
	reranked = append(reranked, base[poolSize:]...)

	return reranked, &RerankDebug{ClipWeightUsed: outcome.ClipWeight, ClipScoreRange: outcome.ClipScoreRange}
}

func (s *Service) calibrate(fused []fusion.FusedCandidate, matchQuality string) []float64 {
	if !s.cfg.Gating.EnableDisplayScoreCalibration || len(fused) == 0 {
		return nil
	}

	if matchQuality == string(gating.MatchBestGuess) && s.cfg.Gating.EnableLookupAbsoluteDisplay {
		out := make([]float64, len(fused))
		for i, fc := range fused {
			absSim := 0.0
			for _, ch := range []string{fetch.ChanDenseTranscript, fetch.ChanDenseVisual, fetch.ChanDenseSummary} {
				if pc, ok := fc.PerChannel[ch]; ok && pc.Raw > absSim {
					absSim = pc.Raw
				}
			}
			out[i] = gating.BestGuessDisplayScore(absSim, s.cfg.Gating.LookupAbsSimFloor, s.cfg.Gating.LookupAbsSimCeil, s.cfg.Gating.LookupBestGuessMaxCap)
		}
		return out
	}

	scores := make([]float64, len(fused))
	for i, fc := range fused {
		scores[i] = fc.Score
	}
	return gating.Calibrate(scores, gating.Method(s.cfg.Gating.DisplayScoreMethod), s.cfg.Gating.DisplayScoreMaxCap, s.cfg.Gating.DisplayScoreAlpha, s.cfg.Gating.DisplayScorePercentile)
}

func (s *Service) hydrate(
	ctx context.Context,
	tenantID uuid.UUID,
	fused []fusion.FusedCandidate,
	displayScores []float64,
	matchQuality string,
	appliedWeights map[string]float64,
	fusionMethod string,
	resolution weights.Resolution,
	disabled []string,
	rerankDebug *RerankDebug,
) ([]Result, error) {
	ids := make([]uuid.UUID, 0, len(fused))
	for _, fc := range fused {
		if id, err := uuid.Parse(fc.SceneID); err == nil {
			ids = append(ids, id)
		}
	}
	scenes, err := s.deps.Scenes.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("load result scenes: %w", err)
	}
	byID := make(map[uuid.UUID]*video.Scene, len(scenes))
	for _, sc := range scenes {
		byID[sc.ID] = sc
	}

	results := make([]Result, 0, len(fused))
	for i, fc := range fused {
		id, err := uuid.Parse(fc.SceneID)
		if err != nil {
			continue
		}
		sc, ok := byID[id]
		if !ok {
			continue
		}

		thumbnailURL := ""
		if sc.ThumbnailKey != "" {
			if url, err := s.deps.Objects.SignedDownloadURL(ctx, sc.ThumbnailKey, 15*time.Minute); err == nil {
				thumbnailURL = url
			}
		}

		r := Result{
			SceneID:           sc.ID.String(),
			VideoID:           sc.VideoID.String(),
			Index:             sc.Index,
			StartS:            sc.StartS,
			EndS:              sc.EndS,
			TranscriptSegment: sc.TranscriptSegment,
			VisualSummary:     sc.VisualSummary,
			VisualDescription: sc.VisualDescription,
			Tags:              decodeTags(sc.Tags),
			ThumbnailURL:      thumbnailURL,
			Score:             fc.Score,
			MatchQuality:      matchQuality,
		}
		if i < len(displayScores) {
			d := displayScores[i]
			r.DisplayScore = &d
		}

		perChannel := make(map[string]PerChannelDebug, len(fc.PerChannel))
		for ch, pc := range fc.PerChannel {
			perChannel[ch] = PerChannelDebug{Rank: pc.Rank, Raw: pc.Raw, Normalized: pc.Normalized, Weight: pc.Weight}
		}
		r.Debug = &Debug{
			PerChannel:       perChannel,
			FusionMethod:     fusionMethod,
			WeightsApplied:   appliedWeights,
			WeightsSource:    string(resolution.Source),
			ChannelsDisabled: disabled,
			Clamped:          resolution.Clamped,
			Rerank:           rerankDebug,
		}
		results = append(results, r)
	}
	return results, nil
}

func sceneIDStrings(cands []fusion.Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.SceneID)
	}
	return out
}

func restrictFused(fused []fusion.FusedCandidate, gate gating.GateResult) []fusion.FusedCandidate {
	if gate.AllowedSceneIDs == nil {
		return fused
	}
	out := make([]fusion.FusedCandidate, 0, len(fused))
	for _, fc := range fused {
		if gate.AllowedSceneIDs[fc.SceneID] {
			out = append(out, fc)
		}
	}
	return out
}

func decodeTags(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil
	}
	return tags
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
