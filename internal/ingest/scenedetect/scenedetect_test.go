package scenedetect

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/videosearch/internal/ingest/media"
)

func TestBoundsFromCutsSortsDedupsAndAppendsDuration(t *testing.T) {
	bounds := boundsFromCuts([]float64{5, 2, 5, 8}, 10)
	assert.Equal(t, []float64{0, 2, 5, 8, 10}, bounds)
}

func TestBoundsFromCutsNoCutsYieldsSingleSpan(t *testing.T) {
	bounds := boundsFromCuts(nil, 10)
	assert.Equal(t, []float64{0, 10}, bounds)
}

func TestMergeShortTailsFoldsShortMiddleSegment(t *testing.T) {
	// segments: [0,2),[2,2.5),[2.5,10) -- the middle is 0.5s, below minLen=2.
	out := mergeShortTails([]float64{0, 2, 2.5, 10}, 2)
	assert.Equal(t, []float64{0, 2, 10}, out)
}

func TestMergeShortTailsFoldsShortFinalSegment(t *testing.T) {
	out := mergeShortTails([]float64{0, 5, 9.8, 10}, 2)
	assert.Equal(t, []float64{0, 5, 10}, out)
}

func TestMergeShortTailsNoopWhenAllLongEnough(t *testing.T) {
	out := mergeShortTails([]float64{0, 5, 10}, 2)
	assert.Equal(t, []float64{0, 5, 10}, out)
}

func TestToIntervalsAssignsDenseIndexOrder(t *testing.T) {
	intervals := toIntervals([]float64{0, 2, 5, 10})
	require.Len(t, intervals, 3)
	assert.Equal(t, Interval{Index: 0, StartS: 0, EndS: 2}, intervals[0])
	assert.Equal(t, Interval{Index: 1, StartS: 2, EndS: 5}, intervals[1])
	assert.Equal(t, Interval{Index: 2, StartS: 5, EndS: 10}, intervals[2])
}

// flatColorTools produces a solid-color frame except for one abrupt
// brightness jump at a configured timestamp, simulating a hard content cut.
type flatColorTools struct {
	cutAtS float64
}

func (f *flatColorTools) Probe(ctx context.Context, videoPath string) (*media.Probe, error) {
	return &media.Probe{}, nil
}

func (f *flatColorTools) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	return nil
}

func (f *flatColorTools) DecodeFrameAt(ctx context.Context, videoPath string, tsSeconds float64) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	c := color.RGBA{R: 20, G: 20, B: 20, A: 255}
	if tsSeconds >= f.cutAtS {
		c = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	return img, nil
}

func TestDetectZeroCutsYieldsOneSceneCoveringWholeVideo(t *testing.T) {
	tools := &flatColorTools{cutAtS: 1000} // never cuts within the sampled duration
	intervals, err := Detect(context.Background(), tools, "video.mp4", 6, Config{
		Strategy:              StrategyContent,
		SampleIntervalSeconds: 1,
	})
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.Equal(t, 0.0, intervals[0].StartS)
	assert.Equal(t, 6.0, intervals[0].EndS)
}

func TestDetectRejectsNonPositiveDuration(t *testing.T) {
	tools := &flatColorTools{cutAtS: 1000}
	_, err := Detect(context.Background(), tools, "video.mp4", 0, Config{})
	assert.Error(t, err)
}

func TestDetectPartitionsWholeDurationRegardlessOfCuts(t *testing.T) {
	tools := &flatColorTools{cutAtS: 3}
	intervals, err := Detect(context.Background(), tools, "video.mp4", 6, Config{
		Strategy:              StrategyContent,
		ContentThreshold:      10,
		SampleIntervalSeconds: 1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, intervals)
	assert.Equal(t, 0.0, intervals[0].StartS)
	assert.Equal(t, 6.0, intervals[len(intervals)-1].EndS)
	for i, iv := range intervals {
		assert.Equal(t, i, iv.Index)
		assert.Greater(t, iv.EndS, iv.StartS)
	}
}
