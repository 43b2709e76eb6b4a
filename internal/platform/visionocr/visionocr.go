// Package visionocr implements the KeyframeOCR contract against GCP
// Vision document text detection: a synchronous BatchAnnotateImages call
// per keyframe, with whitespace collapse and mean block confidence. Scene
// keyframes are single JPEGs, never multi-page documents, so the async
// file-annotation API has no caller here.
package visionocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
)

type Client struct {
	vision  *vision.ImageAnnotatorClient
	log     *logger.Logger
	timeout time.Duration
}

func New(ctx context.Context, log *logger.Logger) (*Client, error) {
	c, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &Client{
		vision:  c,
		log:     log.With("service", "GCPVisionOCR"),
		timeout: 60 * time.Second,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.vision == nil {
		return nil
	}
	return c.vision.Close()
}

// OCRImage runs document text detection over one keyframe. An image with
// no legible text yields an empty-text result, not an error.
func (c *Client) OCRImage(ctx context.Context, img []byte) (*store.OCRResult, error) {
	if len(img) == 0 {
		return &store.OCRResult{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: img},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := c.vision.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return &store.OCRResult{}, nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	fta := r0.FullTextAnnotation
	if fta == nil || strings.TrimSpace(fta.Text) == "" {
		return &store.OCRResult{}, nil
	}

	conf := 0.0
	for _, pg := range fta.Pages {
		if pg == nil {
			continue
		}
		conf = avgBlockConfidence(pg.Blocks)
		break
	}

	return &store.OCRResult{
		Text:       collapseWhitespace(fta.Text),
		Confidence: conf,
	}, nil
}

func avgBlockConfidence(blocks []*visionpb.Block) float64 {
	if len(blocks) == 0 {
		return 0
	}
	var sum float64
	n := 0
	for _, b := range blocks {
		if b == nil {
			continue
		}
		if b.Confidence > 0 {
			sum += float64(b.Confidence)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
