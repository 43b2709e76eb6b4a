// Package fetch runs the per-channel candidate retrievals: one goroutine
// per channel, each with its own timeout, gathered regardless of which
// finish. A plain WaitGroup rather than an errgroup -- no cancellation
// propagates between channels, since a slow or failing channel must never
// cancel its siblings.
package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
	"github.com/heimdex/videosearch/internal/search/fusion"
)

const (
	ChanDenseTranscript = "dense_transcript"
	ChanDenseVisual     = "dense_visual"
	ChanDenseSummary    = "dense_summary"
	ChanLexical         = "lexical"
	ChanClip            = "clip"
	ChanPerson          = "person"
)

type Deps struct {
	Vectors store.VectorStore
	Lexical store.LexicalStore
	Text    store.TextEmbedder
	Image   store.ImageEmbedder
}

type ChannelConfig struct {
	TopK      int
	Threshold float64
}

// Request carries everything one search needs embedded/fetched; callers
// populate only the channel configs they want run (an absent key disables
// that channel outright, distinct from a channel that runs and comes back
// empty or times out).
type Request struct {
	TenantID  uuid.UUID
	VideoID   *uuid.UUID
	QueryText string
	Language  string

	// PersonQueryVec is the resolved person's query_embedding (clip_image
	// space); nil unless a person prefix matched in the planner and
	// the person has one on file.
	PersonQueryVec []float32

	Channels map[string]ChannelConfig
	Timeout  time.Duration // per-task timeout (multi_dense_timeout_s)
}

type Outcome struct {
	Lists    fusion.ChannelLists
	Disabled []string // requested channels that timed out, errored, or had no query vector
}

// FetchAll embeds the query once per embedding space (D_T for the three
// dense-text channels, D_V for clip) and fans out every configured channel
// concurrently. A channel that errors or times out contributes an empty
// list and is recorded as disabled; it never affects its siblings.
func FetchAll(ctx context.Context, deps Deps, req Request, log *logger.Logger) Outcome {
	lists := fusion.ChannelLists{}
	var disabled []string
	var mu sync.Mutex

	record := func(channel string, cands []fusion.Candidate, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if ok {
			lists[channel] = cands
		} else {
			disabled = append(disabled, channel)
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	var queryTextVec []float32
	needsTextVec := false
	for _, ch := range []string{ChanDenseTranscript, ChanDenseVisual, ChanDenseSummary} {
		if _, ok := req.Channels[ch]; ok {
			needsTextVec = true
		}
	}
	if needsTextVec {
		embCtx, cancel := context.WithTimeout(ctx, timeout)
		vec, err := deps.Text.Embed(embCtx, req.QueryText, 0)
		cancel()
		if err != nil {
			log.Warn("query text embedding failed, dense-text channels disabled", "error", err)
		} else {
			queryTextVec = vec
		}
	}

	var queryClipTextVec []float32
	if _, ok := req.Channels[ChanClip]; ok {
		embCtx, cancel := context.WithTimeout(ctx, timeout)
		vec, err := deps.Image.EmbedTextForImageSpace(embCtx, req.QueryText)
		cancel()
		if err != nil {
			log.Warn("query clip-text embedding failed, clip channel disabled", "error", err)
		} else {
			queryClipTextVec = vec
		}
	}

	var wg sync.WaitGroup

	// resultKey is the fusion channel key attached to the candidate list;
	// storeChannel is the vector-store collection it is actually queried
	// against. clip and person both read the clip_image collection with
	// different query vectors, so they need distinct result keys but the
	// same store channel.
	fetchDense := func(resultKey, storeChannel string, vec []float32, cfg ChannelConfig) {
		defer wg.Done()
		if vec == nil {
			record(resultKey, nil, false)
			return
		}
		fctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		hits, err := deps.Vectors.Nearest(fctx, storeChannel, vec, req.TenantID, cfg.TopK, cfg.Threshold, req.VideoID)
		if err != nil {
			log.Warn("dense fetch failed", "channel", resultKey, "error", err)
			record(resultKey, nil, false)
			return
		}
		record(resultKey, hitsToCandidates(hits), true)
	}

	if cfg, ok := req.Channels[ChanDenseTranscript]; ok {
		wg.Add(1)
		go fetchDense(ChanDenseTranscript, ChanDenseTranscript, queryTextVec, cfg)
	}
	if cfg, ok := req.Channels[ChanDenseVisual]; ok {
		wg.Add(1)
		go fetchDense(ChanDenseVisual, ChanDenseVisual, queryTextVec, cfg)
	}
	if cfg, ok := req.Channels[ChanDenseSummary]; ok {
		wg.Add(1)
		go fetchDense(ChanDenseSummary, ChanDenseSummary, queryTextVec, cfg)
	}
	if cfg, ok := req.Channels[ChanClip]; ok {
		wg.Add(1)
		go fetchDense(ChanClip, "clip_image", queryClipTextVec, cfg)
	}
	if cfg, ok := req.Channels[ChanPerson]; ok {
		wg.Add(1)
		go fetchDense(ChanPerson, "clip_image", req.PersonQueryVec, cfg)
	}

	if cfg, ok := req.Channels[ChanLexical]; ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			hits, err := deps.Lexical.Search(fctx, req.TenantID, req.QueryText, req.Language, cfg.TopK, store.LexicalFilters{VideoID: req.VideoID})
			if err != nil {
				log.Warn("lexical fetch failed", "error", err)
				record(ChanLexical, nil, false)
				return
			}
			cands := make([]fusion.Candidate, 0, len(hits))
			for _, h := range hits {
				cands = append(cands, fusion.Candidate{SceneID: h.SceneID.String(), Rank: h.Rank, RawScore: h.Score})
			}
			record(ChanLexical, cands, true)
		}()
	}

	wg.Wait()

	return Outcome{Lists: lists, Disabled: disabled}
}

func hitsToCandidates(hits []store.NearestHit) []fusion.Candidate {
	out := make([]fusion.Candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, fusion.Candidate{SceneID: h.SceneID.String(), Rank: h.Rank, RawScore: h.Similarity})
	}
	return out
}
