// Package fusion combines per-channel candidate lists into one ordered
// scene list, by Reciprocal Rank Fusion or min-max weighted mean.
package fusion

import (
	"math"
	"sort"
)

// Candidate is one entry of a single channel's ranked result list. Rank is
// 1-based and dense; duplicate scene_ids within one channel are forbidden
// by the candidate fetchers, not re-checked here.
type Candidate struct {
	SceneID  string
	Rank     int
	RawScore float64
}

// Channel names are the candidate fetchers' keys: the weight resolver's
// dense_transcript, dense_visual, dense_summary and lexical, plus clip and
// person, which have no resolver weight of their own.
type ChannelLists map[string][]Candidate

// PerChannelDebug is the transparent score breakdown attached to one fused
// candidate, surfaced in the search response's debug block.
type PerChannelDebug struct {
	Raw        float64
	Normalized float64
	Rank       int
	Weight     float64
}

type FusedCandidate struct {
	SceneID     string
	Score       float64
	ScoreType   string // "rrf" | "minmax_mean"
	PerChannel  map[string]PerChannelDebug
	DenseRank   int // best (lowest) rank across dense_* channels; 0 if absent
	LexicalRank int // rank in the lexical channel; 0 if absent
}

const DefaultRRFK = 60

// RRF implements Reciprocal Rank Fusion: score(s) = sum 1/(k+rank_i(s)) over
// channels where s appears. Channels with an empty candidate list simply
// contribute nothing; no weight or renormalization step applies to RRF
// itself (weights only gate which channels were fetched at all).
func RRF(channels ChannelLists, k int) []FusedCandidate {
	if k <= 0 {
		k = DefaultRRFK
	}
	out := make(map[string]*FusedCandidate)
	for chName, list := range channels {
		for _, c := range list {
			fc, ok := out[c.SceneID]
			if !ok {
				fc = &FusedCandidate{SceneID: c.SceneID, ScoreType: "rrf", PerChannel: map[string]PerChannelDebug{}}
				out[c.SceneID] = fc
			}
			fc.Score += 1.0 / float64(k+c.Rank)
			fc.PerChannel[chName] = PerChannelDebug{Raw: c.RawScore, Rank: c.Rank}
			applyRankTracking(fc, chName, c.Rank)
		}
	}
	return sortFused(out)
}

// MinMaxMean implements min-max weighted mean fusion: each channel is
// independently min-max normalized to [0,1] (max==min maps the whole
// channel to 1), then combined as a weighted sum. A missing channel
// contributes 0 and is absent from PerChannel.
func MinMaxMean(channels ChannelLists, weights map[string]float64, eps float64) []FusedCandidate {
	if eps <= 0 {
		eps = 1e-9
	}
	out := make(map[string]*FusedCandidate)
	for chName, list := range channels {
		if len(list) == 0 {
			continue
		}
		w := weights[chName]
		lo, hi := list[0].RawScore, list[0].RawScore
		for _, c := range list {
			if c.RawScore < lo {
				lo = c.RawScore
			}
			if c.RawScore > hi {
				hi = c.RawScore
			}
		}
		spread := hi - lo
		for _, c := range list {
			var norm float64
			if spread <= eps {
				norm = 1.0
			} else {
				norm = (c.RawScore - lo) / spread
			}
			fc, ok := out[c.SceneID]
			if !ok {
				fc = &FusedCandidate{SceneID: c.SceneID, ScoreType: "minmax_mean", PerChannel: map[string]PerChannelDebug{}}
				out[c.SceneID] = fc
			}
			fc.Score += w * norm
			fc.PerChannel[chName] = PerChannelDebug{Raw: c.RawScore, Normalized: norm, Rank: c.Rank, Weight: w}
			applyRankTracking(fc, chName, c.Rank)
		}
	}
	return sortFused(out)
}

func applyRankTracking(fc *FusedCandidate, channel string, rank int) {
	if channel == "lexical" {
		fc.LexicalRank = rank
		return
	}
	if len(channel) >= 5 && channel[:5] == "dense" {
		if fc.DenseRank == 0 || rank < fc.DenseRank {
			fc.DenseRank = rank
		}
	}
}

func sortFused(m map[string]*FusedCandidate) []FusedCandidate {
	out := make([]FusedCandidate, 0, len(m))
	for _, fc := range m {
		out = append(out, *fc)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// less implements the 4-level deterministic tie-break: higher fused
// score; better (lower, nonzero-first) dense rank; better lexical rank;
// scene_id ascending.
func less(a, b FusedCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	ar, br := rankOrInf(a.DenseRank), rankOrInf(b.DenseRank)
	if ar != br {
		return ar < br
	}
	ar, br = rankOrInf(a.LexicalRank), rankOrInf(b.LexicalRank)
	if ar != br {
		return ar < br
	}
	return a.SceneID < b.SceneID
}

func rankOrInf(rank int) float64 {
	if rank <= 0 {
		return math.Inf(1)
	}
	return float64(rank)
}

// DenseOnly and LexicalOnly implement the degrade-to-single-family fallback:
// when only one channel family has any candidates, fusion ranks by that
// family directly rather than running the full multi-channel math.
func DenseOnly(channels ChannelLists) []FusedCandidate {
	merged := ChannelLists{}
	for name, list := range channels {
		if name != "lexical" {
			merged[name] = list
		}
	}
	return RRF(merged, DefaultRRFK)
}

func LexicalOnly(lexical []Candidate) []FusedCandidate {
	return RRF(ChannelLists{"lexical": lexical}, DefaultRRFK)
}

// HasDense and HasLexical let callers decide whether to take the
// single-family fallback path before invoking RRF/MinMaxMean directly.
func HasDense(channels ChannelLists) bool {
	for name, list := range channels {
		if name != "lexical" && len(list) > 0 {
			return true
		}
	}
	return false
}

func HasLexical(channels ChannelLists) bool {
	return len(channels["lexical"]) > 0
}
