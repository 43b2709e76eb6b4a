// Package visualanalyzer is a strict-JSON HTTP client calling an external
// VLM for per-keyframe scene description, entities, and actions, using a
// json_schema response format in strict mode with bounded retry via
// internal/pkg/httpx.
package visualanalyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/heimdex/videosearch/internal/pkg/httpx"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/platform/store"
)

const maxDescriptionChars = 500

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log.With("service", "VisualAnalyzerClient"),
	}
}

var schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"status":        map[string]any{"type": "string", "enum": []string{"ok", "no_content"}},
		"description":   map[string]any{"type": "string"},
		"main_entities": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"actions":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required":             []string{"status", "description", "main_entities", "actions"},
	"additionalProperties":  false,
}

type analyzeRequest struct {
	Model string `json:"model"`
	Input []inputMessage `json:"input"`
	Text  struct {
		Format map[string]any `json:"format"`
	} `json:"text"`
}

type inputMessage struct {
	Role    string `json:"role"`
	Content []any  `json:"content"`
}

type analyzeResponse struct {
	OutputText string `json:"output_text"`
	Refusal    string `json:"refusal,omitempty"`
}

type rawAnalysis struct {
	Status       string   `json:"status"`
	Description  string   `json:"description"`
	MainEntities []string `json:"main_entities"`
	Actions      []string `json:"actions"`
}

// Analyze prompts the VLM over one keyframe plus optional transcript
// context. A malformed response or external failure is treated as
// "no_content" rather than propagating an error; the sidecar builder
// relies on this fail-soft contract.
func (c *Client) Analyze(ctx context.Context, imagePath string, context string, lang string) (*store.VisualAnalysis, error) {
	imageB64, err := encodeImage(imagePath)
	if err != nil {
		return &store.VisualAnalysis{Status: "no_content", Error: "image_read_failed: " + err.Error()}, nil
	}

	system := "You describe a single video keyframe strictly as JSON. Never include any text outside the schema fields."
	userPrompt := "Describe the main subject, entities, and actions visible in this frame."
	if strings.TrimSpace(context) != "" {
		userPrompt += " Spoken context for this moment: " + context
	}
	if lang != "" {
		userPrompt += " Respond in " + lang + "."
	}

	req := analyzeRequest{
		Model: c.cfg.Model,
		Input: []inputMessage{
			{Role: "system", Content: []any{map[string]any{"type": "input_text", "text": system}}},
			{Role: "user", Content: []any{
				map[string]any{"type": "input_text", "text": userPrompt},
				map[string]any{"type": "input_image", "image_url": "data:image/jpeg;base64," + imageB64},
			}},
		},
	}
	req.Text.Format = map[string]any{"type": "json_schema", "name": "visual_analysis", "schema": schema, "strict": true}

	var resp analyzeResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return &store.VisualAnalysis{Status: "no_content", Error: err.Error()}, nil
	}
	if resp.Refusal != "" {
		return &store.VisualAnalysis{Status: "no_content", Error: "model_refused: " + resp.Refusal}, nil
	}

	var parsed rawAnalysis
	if err := json.Unmarshal([]byte(resp.OutputText), &parsed); err != nil {
		return &store.VisualAnalysis{Status: "no_content", Error: "malformed_json: " + err.Error()}, nil
	}
	if parsed.Status != "ok" {
		return &store.VisualAnalysis{Status: "no_content"}, nil
	}

	desc := parsed.Description
	if len([]rune(desc)) > maxDescriptionChars {
		desc = string([]rune(desc)[:maxDescriptionChars])
	}
	return &store.VisualAnalysis{
		Status:       "ok",
		Description:  desc,
		MainEntities: parsed.MainEntities,
		Actions:      parsed.Actions,
	}, nil
}

func (c *Client) do(ctx context.Context, body analyzeRequest, out *analyzeResponse) error {
	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	backoff := 1 * time.Second

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
		if !httpx.IsRetryableError(err) && !isRetryableStatus(resp) {
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

func isRetryableStatus(resp *http.Response) bool {
	return resp != nil && httpx.IsRetryableHTTPStatus(resp.StatusCode)
}

func (c *Client) doOnce(ctx context.Context, body analyzeRequest, out *analyzeResponse) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/responses", bytes.NewReader(buf))
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
		return resp, fmt.Errorf("visual analyzer http %d", resp.StatusCode)
	}
	return resp, json.NewDecoder(resp.Body).Decode(out)
}

func encodeImage(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
