// Package video asks a third-party download service for a video's stream
// metadata. The response is not interpreted; callers get the JSON verbatim.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Defaults for the download-info endpoint.
const (
	DefaultEndpoint = "https://greenvideo.cc/api/video/getDownloadInfo"
	DefaultHost     = "bilibili"
	DefaultQuality  = "未知"
)

// ErrMissingVID is returned when no video ID was given.
var ErrMissingVID = errors.New("video id is required")

// Request is the body posted to the endpoint.
type Request struct {
	Host    string `json:"host"`
	VID     string `json:"vid"`
	Quality string `json:"quality"`
}

// StatusError reports a non-2xx reply together with its body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download info request failed with status %d: %s", e.StatusCode, e.Body)
}

// Config controls the client.
type Config struct {
	Endpoint string
	Host     string
	Quality  string
	Timeout  time.Duration
}

// Client posts download-info requests. It never retries.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient builds a Client, filling unset fields with the defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Quality == "" {
		cfg.Quality = DefaultQuality
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New()
	client.SetHeader("accept", "application/json")
	client.SetHeader("kdsystem", "GreenVideo")
	client.SetRetryCount(0)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &Client{http: client, cfg: cfg, logger: logger}
}

// DownloadInfo returns the raw JSON describing vid. An empty host or quality
// uses the configured default.
func (c *Client) DownloadInfo(ctx context.Context, req Request) (json.RawMessage, error) {
	req.VID = strings.TrimSpace(req.VID)
	if req.VID == "" {
		return nil, ErrMissingVID
	}
	if req.Host == "" {
		req.Host = c.cfg.Host
	}
	if req.Quality == "" {
		req.Quality = c.cfg.Quality
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(req).
		Post(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.cfg.Endpoint, err)
	}
	c.logger.Debug("download info response",
		zap.String("vid", req.VID),
		zap.Int("status_code", res.StatusCode()),
		zap.Duration("duration", res.Time()),
	)
	if res.IsError() || res.StatusCode() < 200 || res.StatusCode() > 299 {
		return nil, &StatusError{StatusCode: res.StatusCode(), Body: res.String()}
	}

	body := res.Body()
	if !json.Valid(body) {
		return nil, fmt.Errorf("download info response is not json: %q", truncate(res.String(), 200))
	}
	return json.RawMessage(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
