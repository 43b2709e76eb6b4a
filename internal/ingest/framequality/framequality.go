// Package framequality extracts candidate keyframes for a scene, scores
// brightness (mean luma) and blur (variance of Laplacian), and picks the
// best informative frame. Frames come decoded from internal/ingest/media;
// the scoring kernels are plain numeric code over subsampled pixel grids.
package framequality

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/heimdex/videosearch/internal/ingest/media"
)

type Config struct {
	MaxKeyframesPerScene int
	BrightnessThreshold  float64
	BlurThreshold        float64
}

type Candidate struct {
	TimestampS float64
	Image      image.Image
	Brightness float64
	Blur       float64
	Score      float64
}

func (c Candidate) Informative(cfg Config) bool {
	return c.Brightness >= cfg.BrightnessThreshold && c.Blur >= cfg.BlurThreshold
}

// SampleTimestamps computes K=min(configured_max, ceil(duration/2s), >=1)
// evenly spaced timestamps within [startS, endS).
func SampleTimestamps(startS, endS float64, cfg Config) []float64 {
	duration := endS - startS
	if duration <= 0 {
		return []float64{startS}
	}
	k := int(math.Ceil(duration / 2.0))
	if cfg.MaxKeyframesPerScene > 0 && k > cfg.MaxKeyframesPerScene {
		k = cfg.MaxKeyframesPerScene
	}
	if k < 1 {
		k = 1
	}
	out := make([]float64, k)
	step := duration / float64(k)
	for i := 0; i < k; i++ {
		out[i] = startS + step*(float64(i)+0.5)
	}
	return out
}

// Extract decodes every sample timestamp for one scene and scores each
// frame. Frames that fail to decode are dropped silently; a scene whose
// video is otherwise readable rarely loses every candidate.
func Extract(ctx context.Context, tools media.Tools, videoPath string, startS, endS float64, cfg Config) ([]Candidate, error) {
	timestamps := SampleTimestamps(startS, endS, cfg)
	candidates := make([]Candidate, 0, len(timestamps))
	for _, ts := range timestamps {
		if ctx.Err() != nil {
			return candidates, ctx.Err()
		}
		img, err := tools.DecodeFrameAt(ctx, videoPath, ts)
		if err != nil {
			continue
		}
		b := brightness(img)
		s := blurScore(img)
		candidates = append(candidates, Candidate{
			TimestampS: ts,
			Image:      img,
			Brightness: b,
			Blur:       s,
			Score:      score(b, s),
		})
	}
	return candidates, nil
}

// score blends exposure and sharpness:
// 0.4*(1-|brightness-127.5|/127.5) + 0.6*min(blur/1000, 1).
func score(brightness, blur float64) float64 {
	brightTerm := 1 - math.Abs(brightness-127.5)/127.5
	if brightTerm < 0 {
		brightTerm = 0
	}
	blurTerm := blur / 1000.0
	if blurTerm > 1 {
		blurTerm = 1
	}
	return 0.4*brightTerm + 0.6*blurTerm
}

// brightness computes mean luma (0-255) over a subsampled pixel grid.
func brightness(img image.Image) float64 {
	bounds := img.Bounds()
	stepX := maxInt(1, bounds.Dx()/64)
	stepY := maxInt(1, bounds.Dy()/64)
	var sum float64
	var n float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			sum += luma
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// blurScore computes the variance of the Laplacian over a subsampled,
// grayscale-reduced grid: higher variance means sharper edges/content.
func blurScore(img image.Image) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}
	stride := maxInt(1, maxInt(w, h)/256)
	gray := make([][]float64, 0, h/stride+2)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		row := make([]float64, 0, w/stride+2)
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			r, g, b, _ := img.At(x, y).RGBA()
			row = append(row, 0.299*float64(r>>8)+0.587*float64(g>>8)+0.114*float64(b>>8))
		}
		gray = append(gray, row)
	}
	if len(gray) < 3 {
		return 0
	}

	var laplacians []float64
	for y := 1; y < len(gray)-1; y++ {
		row := gray[y]
		if len(row) < 3 {
			continue
		}
		for x := 1; x < len(row)-1; x++ {
			lap := -4*gray[y][x] + gray[y-1][x] + gray[y+1][x] + gray[y][x-1] + gray[y][x+1]
			laplacians = append(laplacians, lap)
		}
	}
	if len(laplacians) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range laplacians {
		mean += v
	}
	mean /= float64(len(laplacians))
	variance := 0.0
	for _, v := range laplacians {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(laplacians))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// RankedFrames returns the informative candidates sorted descending by
// score. BestFrame returns the top one, or nil when every frame is
// uninformative (callers then skip visual analysis for the scene).
func RankedFrames(candidates []Candidate, cfg Config) []Candidate {
	informative := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Informative(cfg) {
			informative = append(informative, c)
		}
	}
	sort.Slice(informative, func(i, j int) bool { return informative[i].Score > informative[j].Score })
	return informative
}

func BestFrame(candidates []Candidate, cfg Config) *Candidate {
	ranked := RankedFrames(candidates, cfg)
	if len(ranked) == 0 {
		return nil
	}
	return &ranked[0]
}
