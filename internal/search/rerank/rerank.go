// Package rerank implements the CLIP-based reranker: blends base
// fused scores with a batch CLIP scorer over a larger candidate pool, and
// skips entirely when the CLIP score distribution is flat.
package rerank

import (
	"math"
	"sort"
)

type BaseCandidate struct {
	SceneID string
	Score   float64
}

type ClipContribution struct {
	Raw  float64
	Norm float64
}

type Result struct {
	SceneID    string
	FinalScore float64
	Clip       *ClipContribution // nil when rerank was skipped for this candidate
}

type Outcome struct {
	Results      []Result
	Applied      bool
	SkippedReason string // e.g. "flat_clip"; empty when Applied
	ClipWeight   float64
	ClipScoreRange float64
}

const eps = 1e-9

// Rerank takes the base-fused pool and a batch of CLIP scores keyed by
// scene_id, and blends
// final = (1-alpha)*base_norm + alpha*clip_norm unless the CLIP scores are
// flat (max-min < minScoreRange), in which case the base ranking is
// returned unchanged with skipped_reason="flat_clip".
func Rerank(base []BaseCandidate, clipScores map[string]float64, alpha, minScoreRange float64) Outcome {
	if len(base) == 0 {
		return Outcome{Results: nil, Applied: false, SkippedReason: "empty_base"}
	}
	if len(clipScores) == 0 {
		return Outcome{Results: baseOnly(base), Applied: false, SkippedReason: "no_clip_scores"}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range clipScores {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	clipRange := hi - lo
	if clipRange < minScoreRange {
		out := baseOnly(base)
		return Outcome{
			Results:        out,
			Applied:        false,
			SkippedReason:  "flat_clip",
			ClipScoreRange: clipRange,
		}
	}

	baseLo, baseHi := base[0].Score, base[0].Score
	for _, c := range base {
		if c.Score < baseLo {
			baseLo = c.Score
		}
		if c.Score > baseHi {
			baseHi = c.Score
		}
	}
	baseSpread := baseHi - baseLo

	results := make([]Result, 0, len(base))
	for _, c := range base {
		baseNorm := 1.0
		if baseSpread > eps {
			baseNorm = (c.Score - baseLo) / baseSpread
		}
		clipRaw, ok := clipScores[c.SceneID]
		var clipNorm float64
		var contrib *ClipContribution
		if ok {
			clipNorm = (clipRaw - lo) / clipRange
			contrib = &ClipContribution{Raw: clipRaw, Norm: clipNorm}
		}
		final := (1-alpha)*baseNorm + alpha*clipNorm
		results = append(results, Result{SceneID: c.SceneID, FinalScore: final, Clip: contrib})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].SceneID < results[j].SceneID
	})

	return Outcome{
		Results:        results,
		Applied:        true,
		ClipWeight:     alpha,
		ClipScoreRange: clipRange,
	}
}

func baseOnly(base []BaseCandidate) []Result {
	out := make([]Result, 0, len(base))
	for _, c := range base {
		out = append(out, Result{SceneID: c.SceneID, FinalScore: c.Score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return out[i].SceneID < out[j].SceneID
	})
	return out
}
