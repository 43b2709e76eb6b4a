package framequality

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/videosearch/internal/ingest/media"
)

func TestSampleTimestampsRespectsMaxAndMinimumOfOne(t *testing.T) {
	ts := SampleTimestamps(0, 1, Config{MaxKeyframesPerScene: 10})
	require.Len(t, ts, 1)
	assert.InDelta(t, 0.5, ts[0], 1e-9)
}

func TestSampleTimestampsCapsAtConfiguredMax(t *testing.T) {
	ts := SampleTimestamps(0, 100, Config{MaxKeyframesPerScene: 3})
	assert.Len(t, ts, 3)
}

func TestSampleTimestampsEvenlySpacedWithinWindow(t *testing.T) {
	ts := SampleTimestamps(10, 14, Config{MaxKeyframesPerScene: 2})
	require.Len(t, ts, 2)
	assert.Greater(t, ts[0], 10.0)
	assert.Less(t, ts[len(ts)-1], 14.0)
	for i := 1; i < len(ts); i++ {
		assert.Greater(t, ts[i], ts[i-1])
	}
}

func TestScoreFavorsMidBrightnessAndHighBlur(t *testing.T) {
	midBright := score(127.5, 1000)
	dark := score(0, 1000)
	lowBlur := score(127.5, 0)
	assert.Greater(t, midBright, dark)
	assert.Greater(t, midBright, lowBlur)
	assert.InDelta(t, 1.0, midBright, 1e-9)
}

func TestCandidateInformativeRequiresBothThresholds(t *testing.T) {
	cfg := Config{BrightnessThreshold: 40, BlurThreshold: 50}
	assert.True(t, Candidate{Brightness: 60, Blur: 80}.Informative(cfg))
	assert.False(t, Candidate{Brightness: 10, Blur: 80}.Informative(cfg))
	assert.False(t, Candidate{Brightness: 60, Blur: 10}.Informative(cfg))
}

func TestRankedFramesFiltersAndSortsDescending(t *testing.T) {
	cfg := Config{BrightnessThreshold: 40, BlurThreshold: 50}
	candidates := []Candidate{
		{Brightness: 60, Blur: 80, Score: 0.5},
		{Brightness: 5, Blur: 5, Score: 0.9}, // uninformative despite high score
		{Brightness: 70, Blur: 90, Score: 0.8},
	}
	ranked := RankedFrames(candidates, cfg)
	require.Len(t, ranked, 2)
	assert.Equal(t, 0.8, ranked[0].Score)
	assert.Equal(t, 0.5, ranked[1].Score)
}

func TestBestFrameNilWhenAllUninformative(t *testing.T) {
	cfg := Config{BrightnessThreshold: 200, BlurThreshold: 900}
	candidates := []Candidate{{Brightness: 10, Blur: 10}}
	assert.Nil(t, BestFrame(candidates, cfg))
}

func TestBestFrameReturnsTopScored(t *testing.T) {
	cfg := Config{BrightnessThreshold: 0, BlurThreshold: 0}
	candidates := []Candidate{
		{Brightness: 127.5, Blur: 1000, Score: score(127.5, 1000)},
		{Brightness: 0, Blur: 0, Score: score(0, 0)},
	}
	best := BestFrame(candidates, cfg)
	require.NotNil(t, best)
	assert.InDelta(t, 127.5, best.Brightness, 1e-9)
}

type solidColorTools struct {
	c color.RGBA
}

func (s *solidColorTools) Probe(ctx context.Context, videoPath string) (*media.Probe, error) {
	return &media.Probe{}, nil
}

func (s *solidColorTools) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	return nil
}

func (s *solidColorTools) DecodeFrameAt(ctx context.Context, videoPath string, tsSeconds float64) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, s.c)
		}
	}
	return img, nil
}

func TestExtractScoresEveryDecodedFrame(t *testing.T) {
	tools := &solidColorTools{c: color.RGBA{R: 127, G: 127, B: 127, A: 255}}
	candidates, err := Extract(context.Background(), tools, "video.mp4", 0, 4, Config{MaxKeyframesPerScene: 2})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.InDelta(t, 127, c.Brightness, 2)
		// A perfectly flat solid color has zero edge variance.
		assert.Equal(t, 0.0, c.Blur)
	}
}
