// Package media wraps the ffmpeg/ffprobe binaries the ingestion pipeline
// needs: probing a video handle, extracting its audio track, and decoding
// frames at specific timestamps. Decode is timestamp-addressed rather than
// interval-based because scene detection and frame quality ranking both
// need frames at caller-chosen instants.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

type Probe struct {
	DurationS float64
	Width     int
	Height    int
	FrameRate float64
	HasAudio  bool
}

type Tools interface {
	Probe(ctx context.Context, videoPath string) (*Probe, error)
	ExtractAudio(ctx context.Context, videoPath, outPath string) error
	DecodeFrameAt(ctx context.Context, videoPath string, tsSeconds float64) (image.Image, error)
}

type tools struct {
	ffmpegPath  string
	ffprobePath string
	workRoot    string
	timeout     time.Duration
}

func New(workRoot string) Tools {
	if workRoot == "" {
		workRoot = "/tmp/heimdex-media"
	}
	return &tools{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		workRoot:    workRoot,
		timeout:     2 * time.Minute,
	}
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

func (t *tools) Probe(ctx context.Context, videoPath string) (*Probe, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-show_entries", "stream=codec_type,width,height,r_frame_rate",
		"-of", "json",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("ffprobe decode: %w", err)
	}

	p := &Probe{}
	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		p.DurationS = d
	}
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			p.Width = s.Width
			p.Height = s.Height
			p.FrameRate = parseRational(s.RFrameRate)
		case "audio":
			p.HasAudio = true
		}
	}
	if p.DurationS <= 0 {
		return nil, fmt.Errorf("unreadable video: no duration reported")
	}
	return p, nil
}

func parseRational(s string) float64 {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			num, errN := strconv.ParseFloat(s[:i], 64)
			den, errD := strconv.ParseFloat(s[i+1:], 64)
			if errN == nil && errD == nil && den != 0 {
				return num / den
			}
			return 0
		}
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func (t *tools) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("mkdir audio out dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-y", "-i", videoPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg audio extract failed: %w; out=%s", err, string(out))
	}
	return nil
}

// DecodeFrameAt extracts a single frame at tsSeconds and decodes it. Each
// call shells out independently; the frame quality ranker and scene
// detector both call this a bounded number of times per scene/sample point.
func (t *tools) DecodeFrameAt(ctx context.Context, videoPath string, tsSeconds float64) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if err := os.MkdirAll(t.workRoot, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir work root: %w", err)
	}
	framePath := filepath.Join(t.workRoot, fmt.Sprintf("frame_%d.jpg", time.Now().UnixNano()))
	defer os.Remove(framePath)

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-y",
		"-ss", strconv.FormatFloat(tsSeconds, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "3",
		framePath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame extract failed at %.3fs: %w; out=%s", tsSeconds, err, string(out))
	}

	f, err := os.Open(framePath)
	if err != nil {
		return nil, fmt.Errorf("open extracted frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode extracted frame: %w", err)
	}
	return img, nil
}
