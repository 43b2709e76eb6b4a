package gating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateSupportedWhenMinHitsMet(t *testing.T) {
	gate := Gate([]string{"s1", "s2", "s3"}, 2)
	assert.Equal(t, MatchSupported, gate.MatchQuality)
	require.NotNil(t, gate.AllowedSceneIDs)
	assert.True(t, gate.AllowedSceneIDs["s1"])
	assert.True(t, gate.AllowedSceneIDs["s3"])
}

func TestGateBestGuessWhenBelowMinHits(t *testing.T) {
	gate := Gate([]string{"s1"}, 3)
	assert.Equal(t, MatchBestGuess, gate.MatchQuality)
	assert.Nil(t, gate.AllowedSceneIDs)
}

func TestGateBestGuessWhenMinHitsZeroDisabled(t *testing.T) {
	gate := Gate(nil, 0)
	assert.Equal(t, MatchBestGuess, gate.MatchQuality)
}

// Lookup "supported" restricts the final set to the lexical allowlist.
func TestRestrictFiltersToAllowlistPreservingOrder(t *testing.T) {
	gate := Gate([]string{"s1", "s2", "s3"}, 2)
	ids := []string{"s1", "s4", "s5", "s2"}
	restricted := Restrict(ids, gate)
	assert.Equal(t, []string{"s1", "s2"}, restricted)
}

func TestRestrictNoopWhenNotGated(t *testing.T) {
	gate := Gate([]string{"s1"}, 5) // below min -> best_guess -> nil allowlist
	ids := []string{"s1", "s4", "s5"}
	assert.Equal(t, ids, Restrict(ids, gate))
}

func TestCalibrateNeverExceedsMaxCap(t *testing.T) {
	scores := []float64{0.95, 0.8, 0.6, 0.1}
	out := Calibrate(scores, MethodExpSquash, 0.65, 3.0, 0.9)
	for _, v := range out {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 0.65)
	}
}

func TestCalibrateExpSquashMonotoneInFusedScore(t *testing.T) {
	scores := []float64{0.95, 0.8, 0.6, 0.1}
	out := Calibrate(scores, MethodExpSquash, 0.65, 3.0, 0.9)
	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, out[i], out[i-1], "calibration must preserve rank order")
	}
}

func TestCalibratePctlCeilingMonotoneAndCapped(t *testing.T) {
	scores := []float64{0.99, 0.7, 0.5, 0.2, 0.05}
	out := Calibrate(scores, MethodPctlCeiling, 0.65, 0, 0.90)
	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, out[i], out[i-1])
	}
	for _, v := range out {
		assert.LessOrEqual(t, v, 0.65)
	}
}

func TestCalibrateFlatDistributionReturnsNeutral(t *testing.T) {
	out := Calibrate([]float64{0.5, 0.5, 0.5}, MethodExpSquash, 0.65, 3.0, 0.9)
	for _, v := range out {
		assert.InDelta(t, 0.5, v, 1e-9)
	}
}

func TestCalibrateSingleResultReturnsNeutral(t *testing.T) {
	out := Calibrate([]float64{0.9}, MethodExpSquash, 0.65, 3.0, 0.9)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.5, out[0], 1e-9)
}

func TestCalibrateEmptyReturnsEmpty(t *testing.T) {
	out := Calibrate(nil, MethodExpSquash, 0.65, 3.0, 0.9)
	assert.Empty(t, out)
}

// Lookup best-guess override: abs_sim=0.33 maps [0.20,0.55] -> [0, 0.65]
// giving ~0.241.
func TestBestGuessDisplayScoreScenario(t *testing.T) {
	got := BestGuessDisplayScore(0.33, 0.20, 0.55, 0.65)
	assert.InDelta(t, 0.241, got, 0.01)
}

func TestBestGuessDisplayScoreClampsAtEnds(t *testing.T) {
	assert.InDelta(t, 0.0, BestGuessDisplayScore(0.0, 0.20, 0.55, 0.65), 1e-9)
	assert.InDelta(t, 0.65, BestGuessDisplayScore(1.0, 0.20, 0.55, 0.65), 1e-9)
}

func TestBestGuessDisplayScoreDegenerateRange(t *testing.T) {
	assert.InDelta(t, 0.0, BestGuessDisplayScore(0.4, 0.5, 0.5, 0.65), 1e-9)
}
