// Package transcriber implements the Transcriber contract against GCP
// Speech-to-Text: long-running recognition with word offsets, grouped
// into fixed-window segments carrying a no-speech probability proxy.
package transcriber

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
)

type Client struct {
	speech *speech.Client
	log    *logger.Logger
}

func New(ctx context.Context, log *logger.Logger) (*Client, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &Client{speech: c, log: log.With("service", "GCPTranscriber")}, nil
}

func (c *Client) Close() error {
	if c == nil || c.speech == nil {
		return nil
	}
	return c.speech.Close()
}

// Transcribe reads the local audio file, issues a LongRunningRecognize
// request with word offsets enabled, and groups words into fixed
// 10-second windows as segments. no_speech_prob is derived from each
// window's mean per-word confidence (GCP Speech does not return a direct
// no-speech probability the way Whisper-family APIs do).
func (c *Client) Transcribe(ctx context.Context, audioPath string, langHint string) (*store.TranscriptResult, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	lang := langHint
	if lang == "" {
		lang = "en-US"
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			LanguageCode:               lang,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
			Model:                      "video",
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}

	op, err := c.speech.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("speech recognize: %w", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech recognize wait: %w", err)
	}

	return toTranscriptResult(resp), nil
}

type word struct {
	text       string
	start, end float64
	confidence float64
}

func toTranscriptResult(resp *speechpb.LongRunningRecognizeResponse) *store.TranscriptResult {
	out := &store.TranscriptResult{}
	if resp == nil || len(resp.Results) == 0 {
		return out
	}

	var words []word
	var full strings.Builder
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		if strings.TrimSpace(alt.Transcript) == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(strings.TrimSpace(alt.Transcript))
		for _, w := range alt.Words {
			if w == nil {
				continue
			}
			words = append(words, word{
				text:       w.Word,
				start:      durToSec(w.StartTime),
				end:        durToSec(w.EndTime),
				confidence: float64(w.Confidence),
			})
		}
	}
	out.Text = strings.TrimSpace(full.String())
	out.Segments = groupByWindow(words, 10.0)
	return out
}

func durToSec(d interface{ AsDuration() time.Duration }) float64 {
	if d == nil {
		return 0
	}
	return d.AsDuration().Seconds()
}

// groupByWindow buckets words into fixed windowSec segments and derives a
// no_speech_prob proxy from (1 - mean confidence) per window.
func groupByWindow(words []word, windowSec float64) []store.TranscriptSegment {
	if len(words) == 0 {
		return nil
	}
	var segs []store.TranscriptSegment
	windowStart := words[0].start
	var bucket []word
	flush := func(endTime float64) {
		if len(bucket) == 0 {
			return
		}
		var text strings.Builder
		var confSum float64
		for i, w := range bucket {
			if i > 0 {
				text.WriteString(" ")
			}
			text.WriteString(w.text)
			confSum += w.confidence
		}
		meanConf := confSum / float64(len(bucket))
		segs = append(segs, store.TranscriptSegment{
			StartS:       bucket[0].start,
			EndS:         endTime,
			Text:         text.String(),
			NoSpeechProb: clamp01(1 - meanConf),
		})
		bucket = nil
	}
	for _, w := range words {
		if w.start-windowStart >= windowSec && len(bucket) > 0 {
			flush(bucket[len(bucket)-1].end)
			windowStart = w.start
		}
		bucket = append(bucket, w)
	}
	if len(bucket) > 0 {
		flush(bucket[len(bucket)-1].end)
	}
	return segs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
