package weights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(w Weights) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

func TestNormalizeSumsToOne(t *testing.T) {
	w := Weights{ChanTranscript: 2, ChanVisual: 1, ChanLexical: 1}
	out := Normalize(w)
	assert.InDelta(t, 1.0, sum(out), 1e-9)
	assert.InDelta(t, 0.5, out[ChanTranscript], 1e-9)
}

func TestNormalizeDropsNonPositive(t *testing.T) {
	w := Weights{ChanTranscript: 1, ChanVisual: 0, ChanLexical: -1}
	out := Normalize(w)
	assert.InDelta(t, 1.0, out[ChanTranscript], 1e-9)
	_, hasVisual := out[ChanVisual]
	assert.False(t, hasVisual)
	_, hasLex := out[ChanLexical]
	assert.False(t, hasLex)
}

func TestAllZero(t *testing.T) {
	assert.True(t, AllZero(Weights{ChanTranscript: 0, ChanVisual: 0}))
	assert.False(t, AllZero(Weights{ChanTranscript: 0.1}))
}

func TestValidateWeightsAcceptsValidMap(t *testing.T) {
	assert.NoError(t, ValidateWeights(map[string]float64{
		ChanTranscript: 0.4, ChanVisual: 0.3, ChanSummary: 0.1, ChanLexical: 0.2,
	}))
	assert.NoError(t, ValidateWeights(map[string]float64{ChanTranscript: 1}))
}

func TestValidateWeightsRejectsUnknownKey(t *testing.T) {
	err := ValidateWeights(map[string]float64{"transcripts": 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid channel key")
}

func TestValidateWeightsRejectsOutOfRange(t *testing.T) {
	err := ValidateWeights(map[string]float64{ChanVisual: 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be in [0, 1]")

	err = ValidateWeights(map[string]float64{ChanLexical: -0.1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be in [0, 1]")
}

func TestValidateWeightsRejectsAllZero(t *testing.T) {
	err := ValidateWeights(map[string]float64{ChanTranscript: 0, ChanVisual: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one weight")

	err = ValidateWeights(map[string]float64{})
	require.Error(t, err)
}

func TestApplyGuardrailsClampsVisual(t *testing.T) {
	w := Weights{ChanTranscript: 0.3, ChanVisual: 0.6, ChanLexical: 0.1}
	out, clamped, warnings := ApplyGuardrails(w, Guardrails{MaxVisualWeight: 0.4})
	require.True(t, clamped)
	require.NotEmpty(t, warnings)
	assert.LessOrEqual(t, out[ChanVisual], 0.4+1e-9)
	assert.InDelta(t, 1.0, sum(out), 1e-9)
}

func TestApplyGuardrailsRaisesLexicalFloor(t *testing.T) {
	w := Weights{ChanTranscript: 0.85, ChanVisual: 0.1, ChanLexical: 0.05}
	out, clamped, _ := ApplyGuardrails(w, Guardrails{MinLexicalWeight: 0.15})
	require.True(t, clamped)
	assert.GreaterOrEqual(t, out[ChanLexical], 0.15-1e-9)
	assert.InDelta(t, 1.0, sum(out), 1e-9)
}

func TestApplyGuardrailsNoopWhenWithinBounds(t *testing.T) {
	w := Weights{ChanTranscript: 0.5, ChanVisual: 0.3, ChanLexical: 0.2}
	out, clamped, warnings := ApplyGuardrails(w, Guardrails{MaxVisualWeight: 0.6, MinLexicalWeight: 0.1})
	assert.False(t, clamped)
	assert.Empty(t, warnings)
	assert.Equal(t, w, out)
}

func TestRedistributeDropsDisabledAndRenormalizes(t *testing.T) {
	w := Weights{ChanTranscript: 0.5, ChanVisual: 0.3, ChanLexical: 0.2}
	out := Redistribute(w, map[string]bool{ChanVisual: true})
	assert.InDelta(t, 1.0, sum(out), 1e-9)
	_, hasVisual := out[ChanVisual]
	assert.False(t, hasVisual)
	assert.Greater(t, out[ChanTranscript], 0.5) // redistributed share increases
}

func TestToFusionKeysMapsUserNames(t *testing.T) {
	w := Weights{ChanTranscript: 0.4, ChanVisual: 0.3, ChanSummary: 0.1, ChanLexical: 0.2}
	out := ToFusionKeys(w)
	assert.InDelta(t, 0.4, out["dense_transcript"], 1e-9)
	assert.InDelta(t, 0.3, out["dense_visual"], 1e-9)
	assert.InDelta(t, 0.1, out["dense_summary"], 1e-9)
	assert.InDelta(t, 0.2, out["lexical"], 1e-9)
}

func TestResolvePrecedenceRequestOverSavedOverDefault(t *testing.T) {
	req := Weights{ChanTranscript: 1}
	saved := Weights{ChanVisual: 1}
	defaults := Weights{ChanLexical: 1}

	res := Resolve(req, saved, defaults, true, "recall", false, Guardrails{})
	assert.Equal(t, SourceRequest, res.Source)
	assert.InDelta(t, 1.0, res.Resolved[ChanTranscript], 1e-9)

	res = Resolve(nil, saved, defaults, true, "recall", false, Guardrails{})
	assert.Equal(t, SourceSaved, res.Source)
	assert.InDelta(t, 1.0, res.Resolved[ChanVisual], 1e-9)

	res = Resolve(nil, nil, defaults, true, "recall", false, Guardrails{})
	assert.Equal(t, SourceDefault, res.Source)
	assert.InDelta(t, 1.0, res.Resolved[ChanLexical], 1e-9)

	// useSavedPreferences=false skips the saved tier even if present.
	res = Resolve(nil, saved, defaults, false, "recall", false, Guardrails{})
	assert.Equal(t, SourceDefault, res.Source)
}

func TestResolveInvalidSavedFallsBackToDefaultsWithWarning(t *testing.T) {
	saved := Weights{ChanTranscript: 0, ChanVisual: 0, ChanSummary: 0, ChanLexical: 0}
	defaults := Weights{ChanLexical: 1}

	res := Resolve(nil, saved, defaults, true, "recall", false, Guardrails{})
	assert.Equal(t, SourceDefault, res.Source)
	assert.InDelta(t, 1.0, res.Resolved[ChanLexical], 1e-9)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "saved preferences invalid")
}

func TestResolveDefaultSourceAppliesDefaultsNormalized(t *testing.T) {
	defaults := Weights{ChanTranscript: 2, ChanVisual: 1, ChanSummary: 0, ChanLexical: 1}
	res := Resolve(nil, nil, defaults, false, "recall", false, Guardrails{})
	assert.Equal(t, SourceDefault, res.Source)
	assert.InDelta(t, 1.0, sum(res.Resolved), 1e-9)
	assert.InDelta(t, Normalize(defaults)[ChanTranscript], res.Resolved[ChanTranscript], 1e-9)
}

func TestResolveVisualModeSkipForcesVisualZero(t *testing.T) {
	req := Weights{ChanTranscript: 0.4, ChanVisual: 0.4, ChanLexical: 0.2}
	res := Resolve(req, nil, nil, false, "skip", false, Guardrails{})
	assert.InDelta(t, 0.0, res.Resolved[ChanVisual], 1e-12)
	assert.InDelta(t, 1.0, sum(res.Resolved), 1e-9)
}

func TestResolveAppliedSumsToOne(t *testing.T) {
	req := Weights{ChanTranscript: 0.25, ChanVisual: 0.65, ChanLexical: 0.1}
	res := Resolve(req, nil, nil, false, "recall", true, Guardrails{MaxVisualWeight: 0.5, MinLexicalWeight: 0.05})
	var total float64
	for _, v := range res.Applied {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.True(t, res.Clamped)
}
