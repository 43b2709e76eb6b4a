// Package clip implements the ImageEmbedder contract against an
// HMAC-authenticated remote CLIP worker. Requests carry
// {image_url|text, request_id, normalize, model, auth{ts,sig}}; responses
// carry {embedding, dim, model, normalized}.
package clip

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/heimdex/videosearch/internal/pkg/httpx"
	"github.com/heimdex/videosearch/internal/pkg/logger"
)

type Config struct {
	BaseURL     string
	HMACSecret  string
	Model       string
	MaxRetries  int
	NowUnix     func() int64
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Client {
	return &Client{cfg: cfg, http: &http.Client{Timeout: 20 * time.Second}, log: log.With("service", "ClipClient")}
}

type authPayload struct {
	TS  int64  `json:"ts"`
	Sig string `json:"sig"`
}

type scoreRequest struct {
	ImageURL  string      `json:"image_url,omitempty"`
	Text      string      `json:"text,omitempty"`
	RequestID string      `json:"request_id"`
	Normalize bool        `json:"normalize"`
	Model     string      `json:"model"`
	Auth      authPayload `json:"auth"`
}

type scoreResponse struct {
	RequestID  string    `json:"request_id"`
	Embedding  []float32 `json:"embedding"`
	Dim        int       `json:"dim"`
	Model      string    `json:"model"`
	Normalized bool      `json:"normalized"`
}

// EmbedImage requests an image embedding for a keyframe URL.
func (c *Client) EmbedImage(ctx context.Context, pathOrURL string) ([]float32, error) {
	req := c.sign(scoreRequest{ImageURL: pathOrURL, RequestID: pathOrURL, Normalize: true, Model: c.cfg.Model})
	return c.call(ctx, req)
}

// EmbedTextForImageSpace requests a CLIP text-tower embedding projected
// into the same vector space as EmbedImage, used by the clip
// fetcher for text-to-image nearest neighbor search.
func (c *Client) EmbedTextForImageSpace(ctx context.Context, text string) ([]float32, error) {
	req := c.sign(scoreRequest{Text: text, RequestID: text, Normalize: true, Model: c.cfg.Model})
	return c.call(ctx, req)
}

func (c *Client) sign(req scoreRequest) scoreRequest {
	ts := time.Now().Unix()
	if c.cfg.NowUnix != nil {
		ts = c.cfg.NowUnix()
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.HMACSecret))
	mac.Write([]byte(req.RequestID + ":" + strconv.FormatInt(ts, 10)))
	req.Auth = authPayload{TS: ts, Sig: hex.EncodeToString(mac.Sum(nil))}
	return req
}

func (c *Client) call(ctx context.Context, req scoreRequest) ([]float32, error) {
	var resp scoreResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

func (c *Client) do(ctx context.Context, body scoreRequest, out *scoreResponse) error {
	backoff := 1 * time.Second
	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, err := c.doOnce(ctx, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) && (resp == nil || !httpx.IsRetryableHTTPStatus(resp.StatusCode)) {
			return err
		}
		if attempt == maxRetries {
			return err
		}
		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		time.Sleep(httpx.JitterSleep(sleepFor))
		backoff *= 2
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, body scoreRequest, out *scoreResponse) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/runsync", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, fmt.Errorf("clip worker http %d", resp.StatusCode)
	}
	return resp, json.NewDecoder(resp.Body).Decode(out)
}
