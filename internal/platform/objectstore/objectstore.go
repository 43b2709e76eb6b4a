// Package objectstore implements the ObjectStore contract against Google
// Cloud Storage: a single-bucket client with content-type-by-key defaults,
// context-scoped readers, and V4 signed URLs. One bucket holds source
// videos, thumbnails, and sidecar artifacts under prefix-based keys.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/heimdex/videosearch/internal/pkg/logger"
)

type Config struct {
	Bucket             string
	CredentialsFile    string // optional; empty uses ambient ADC
	SignerServiceAccount string // email used for V4 signed URLs when signing via IAM credentials API
}

type Client struct {
	cfg    Config
	client *storage.Client
	log    *logger.Logger
}

func New(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &Client{cfg: cfg, client: c, log: log.With("service", "GCSObjectStore")}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := c.client.Bucket(c.cfg.Bucket).Object(key).NewWriter(ctx)
	if contentType == "" {
		contentType = contentTypeForKey(key)
	}
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	r, err := c.client.Bucket(c.cfg.Bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open reader for %s: %w", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (c *Client) SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	}
	if c.cfg.SignerServiceAccount != "" {
		opts.GoogleAccessID = c.cfg.SignerServiceAccount
	}
	u, err := c.client.Bucket(c.cfg.Bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("sign download url for %s: %w", key, err)
	}
	return u, nil
}

func (c *Client) SignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      "PUT",
		Expires:     time.Now().Add(ttl),
		ContentType: contentTypeForKey(key),
	}
	if c.cfg.SignerServiceAccount != "" {
		opts.GoogleAccessID = c.cfg.SignerServiceAccount
	}
	u, err := c.client.Bucket(c.cfg.Bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("sign upload url for %s: %w", key, err)
	}
	return u, nil
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(key)
	switch {
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	case strings.HasSuffix(s, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(s, ".mp4"):
		return "video/mp4"
	default:
		return ""
	}
}
