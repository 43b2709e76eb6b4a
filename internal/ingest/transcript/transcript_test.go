package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/heimdex/videosearch/internal/platform/store"
)

func seg(start, end float64, text string) store.TranscriptSegment {
	return store.TranscriptSegment{StartS: start, EndS: end, Text: text}
}

func TestAlignConcatenatesOverlappingSegmentsInTimeOrder(t *testing.T) {
	segments := []store.TranscriptSegment{
		seg(10, 12, "world"),
		seg(0, 2, "hello"),
	}
	out := Align(segments, 0, 15, 20, Config{MinCharsFloor: 1})
	assert.Equal(t, "hello world", out)
}

func TestAlignIgnoresNonOverlappingSegments(t *testing.T) {
	segments := []store.TranscriptSegment{
		seg(0, 2, "before"),
		seg(5, 7, "inside"),
		seg(20, 22, "after"),
	}
	out := Align(segments, 4, 10, 30, Config{MinCharsFloor: 1})
	assert.Equal(t, "inside", out)
}

func TestAlignPadsWhenBelowFloor(t *testing.T) {
	segments := []store.TranscriptSegment{
		seg(0, 1, "a"),
		seg(5, 6, "longer phrase here"),
		seg(9, 10, "z"),
	}
	// window [7,7.5] overlaps nothing; padding by 2s each side widens it to
	// [5,9.5], which pulls in the "longer phrase here" segment.
	out := Align(segments, 7, 7.5, 20, Config{MinCharsFloor: 10, ContextPadSeconds: 2})
	assert.Contains(t, out, "longer phrase here")
}

func TestAlignClampsPaddingToDurationBounds(t *testing.T) {
	segments := []store.TranscriptSegment{seg(0, 1, "edge")}
	// startS=0, pad of 5 should clamp to 0, not go negative.
	out := Align(segments, 0, 1, 2, Config{MinCharsFloor: 100, ContextPadSeconds: 5})
	assert.Equal(t, "edge", out)
}

func TestAlignNormalizesWhitespaceRuns(t *testing.T) {
	segments := []store.TranscriptSegment{seg(0, 1, "a   b\n\tc")}
	out := Align(segments, 0, 1, 2, Config{MinCharsFloor: 1})
	assert.Equal(t, "a b c", out)
}

func gateCfg() GateConfig {
	return GateConfig{
		MinCharsForSpeech: 10,
		MinSpeechCharRatio: 0.3,
		MaxNoSpeechProb:   0.6,
		MinSpeechSegRatio: 0.5,
		MusicMarkers:      []string{"[music]"},
		BannedPhrases:     []string{"thanks for watching"},
	}
}

func TestGateEmptyTranscriptRejected(t *testing.T) {
	res := Gate("", nil, gateCfg())
	assert.False(t, res.HasSpeech)
	assert.Equal(t, "empty_transcript", res.Reason)
}

func TestGateMusicMarkerRejected(t *testing.T) {
	res := Gate("some long intro [Music] outro here", nil, gateCfg())
	assert.False(t, res.HasSpeech)
	assert.Equal(t, "music_marker", res.Reason)
}

func TestGateBannedPhraseRejected(t *testing.T) {
	res := Gate("a great video, thanks for watching everyone!", nil, gateCfg())
	assert.False(t, res.HasSpeech)
	assert.Equal(t, "banned_phrase", res.Reason)
}

func TestGateTooShortRejected(t *testing.T) {
	res := Gate("... ?!", nil, gateCfg())
	assert.False(t, res.HasSpeech)
	assert.Equal(t, "too_short_or_low_speech_ratio", res.Reason)
}

func TestGateHighNoSpeechProbRejected(t *testing.T) {
	segments := []store.TranscriptSegment{
		{NoSpeechProb: 0.9}, {NoSpeechProb: 0.95},
	}
	res := Gate("this is a reasonably long transcript", segments, gateCfg())
	assert.False(t, res.HasSpeech)
	assert.Equal(t, "high_no_speech_probability", res.Reason)
}

func TestGateLowSpeechSegmentRatioRejected(t *testing.T) {
	segments := []store.TranscriptSegment{
		{NoSpeechProb: 0.9}, {NoSpeechProb: 0.1},
	}
	cfg := gateCfg()
	cfg.MinSpeechSegRatio = 0.9
	res := Gate("this is a reasonably long transcript", segments, cfg)
	assert.False(t, res.HasSpeech)
	assert.Equal(t, "low_speech_segment_ratio", res.Reason)
}

func TestGateAccepts(t *testing.T) {
	segments := []store.TranscriptSegment{
		{NoSpeechProb: 0.1}, {NoSpeechProb: 0.2},
	}
	res := Gate("this is a perfectly normal spoken transcript segment", segments, gateCfg())
	assert.True(t, res.HasSpeech)
	assert.Empty(t, res.Reason)
}

func TestGateShortRatioAcceptedViaHangul(t *testing.T) {
	cfg := gateCfg()
	cfg.MinCharsForSpeech = 100
	cfg.MinSpeechCharRatio = 0.5
	res := Gate("이장원", nil, cfg)
	assert.True(t, res.HasSpeech)
}
