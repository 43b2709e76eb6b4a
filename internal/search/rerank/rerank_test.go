package rerank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A flat CLIP distribution (range=0.02 < min_score_range=0.05) skips
// rerank and leaves order unchanged.
func TestRerankSkipsOnFlatClipDistribution(t *testing.T) {
	base := []BaseCandidate{
		{SceneID: "s1", Score: 0.90},
		{SceneID: "s2", Score: 0.80},
		{SceneID: "s3", Score: 0.70},
		{SceneID: "s4", Score: 0.60},
	}
	clip := map[string]float64{"s1": 0.41, "s2": 0.40, "s3": 0.42, "s4": 0.40}

	outcome := Rerank(base, clip, 0.5, 0.05)
	require.False(t, outcome.Applied)
	assert.Equal(t, "flat_clip", outcome.SkippedReason)
	require.Len(t, outcome.Results, 4)
	assert.Equal(t, []string{"s1", "s2", "s3", "s4"}, []string{
		outcome.Results[0].SceneID, outcome.Results[1].SceneID,
		outcome.Results[2].SceneID, outcome.Results[3].SceneID,
	})
}

func TestRerankBlendsWhenRangeWide(t *testing.T) {
	base := []BaseCandidate{
		{SceneID: "s1", Score: 0.90},
		{SceneID: "s2", Score: 0.80},
	}
	clip := map[string]float64{"s1": 0.10, "s2": 0.95}

	outcome := Rerank(base, clip, 0.8, 0.05)
	require.True(t, outcome.Applied)
	assert.InDelta(t, 0.8, outcome.ClipWeight, 1e-9)
	// s2 has a much higher CLIP score and should overtake s1 with alpha=0.8.
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "s2", outcome.Results[0].SceneID)
}

func TestRerankEmptyBase(t *testing.T) {
	outcome := Rerank(nil, map[string]float64{"s1": 0.5}, 0.5, 0.05)
	assert.False(t, outcome.Applied)
	assert.Equal(t, "empty_base", outcome.SkippedReason)
}

func TestRerankNoClipScores(t *testing.T) {
	base := []BaseCandidate{{SceneID: "s1", Score: 0.5}}
	outcome := Rerank(base, nil, 0.5, 0.05)
	assert.False(t, outcome.Applied)
	assert.Equal(t, "no_clip_scores", outcome.SkippedReason)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, "s1", outcome.Results[0].SceneID)
}

func TestRerankMissingClipScoreForSomeScenes(t *testing.T) {
	base := []BaseCandidate{
		{SceneID: "s1", Score: 0.9},
		{SceneID: "s2", Score: 0.1},
		{SceneID: "s3", Score: 0.5},
	}
	// s3 never got a batch CLIP score back; its Clip contribution stays nil
	// and its blend uses clipNorm's zero value for that half.
	clip := map[string]float64{"s1": 0.2, "s2": 0.9}
	outcome := Rerank(base, clip, 0.5, 0.05)
	require.True(t, outcome.Applied)
	byID := map[string]Result{}
	for _, r := range outcome.Results {
		byID[r.SceneID] = r
	}
	require.NotNil(t, byID["s1"].Clip)
	require.NotNil(t, byID["s2"].Clip)
	assert.Nil(t, byID["s3"].Clip)
}
