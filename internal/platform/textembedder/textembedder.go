// Package textembedder implements the TextEmbedder contract as a small
// HTTP client against an OpenAI-compatible /v1/embeddings endpoint, with
// bounded retry and Retry-After handling via internal/pkg/httpx.
package textembedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/heimdex/videosearch/internal/pkg/httpx"
	"github.com/heimdex/videosearch/internal/pkg/logger"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Client {
	return &Client{cfg: cfg, http: &http.Client{Timeout: 15 * time.Second}, log: log.With("service", "TextEmbedder")}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed implements store.TextEmbedder. dimHint is accepted for interface
// symmetry with variable-dimension models; this client's model has a fixed
// output dimension so the hint is advisory only.
func (c *Client) Embed(ctx context.Context, text string, dimHint int) ([]float32, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		clean = " "
	}

	req := embeddingsRequest{Model: c.cfg.Model, Input: []string{clean}}
	var resp embeddingsResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("text embedder: empty response")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}

func (c *Client) do(ctx context.Context, body embeddingsRequest, out *embeddingsResponse) error {
	backoff := 1 * time.Second
	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
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

func (c *Client) doOnce(ctx context.Context, body embeddingsRequest, out *embeddingsResponse) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, fmt.Errorf("text embedder http %d", resp.StatusCode)
	}
	return resp, json.NewDecoder(resp.Body).Decode(out)
}
