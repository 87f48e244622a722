// Package auto fetches with plain HTTP first and switches a host to a browser
// session once it starts serving challenge pages.
package auto

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
)

// Detector decides whether a probe response needs the browser.
type Detector interface {
	ShouldPromote(resp crawler.FetchResponse) bool
}

// RenderFactory builds the browser fetcher on first use.
type RenderFactory func() (crawler.Fetcher, error)

// Config wires the two backends together.
type Config struct {
	Probe    crawler.Fetcher
	Render   RenderFactory
	Detector Detector
	// OnPromote, when set, is called once per host that is switched over.
	OnPromote func(host string)
}

// Fetcher implements crawler.Fetcher. Promotion is sticky per host for the
// life of the Fetcher.
type Fetcher struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	render   crawler.Fetcher
	promoted map[string]bool
}

// New validates cfg and returns a Fetcher.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.Probe == nil || cfg.Render == nil || cfg.Detector == nil {
		return nil, fmt.Errorf("auto fetcher requires probe, render and detector")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, logger: logger, promoted: make(map[string]bool)}, nil
}

// Fetch implements crawler.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	host := hostOf(rawURL)
	if f.isPromoted(host) {
		return f.renderFetch(ctx, rawURL)
	}

	resp, err := f.cfg.Probe.Fetch(ctx, rawURL)
	if err != nil || !f.cfg.Detector.ShouldPromote(resp) {
		return resp, err
	}

	f.logger.Info("promoting host to headless fetcher",
		zap.String("host", host),
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
	)
	f.promote(host)
	return f.renderFetch(ctx, rawURL)
}

// Promoted reports whether host has been switched to the browser.
func (f *Fetcher) Promoted(host string) bool {
	return f.isPromoted(host)
}

func (f *Fetcher) isPromoted(host string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.promoted[host]
}

func (f *Fetcher) promote(host string) {
	f.mu.Lock()
	already := f.promoted[host]
	f.promoted[host] = true
	f.mu.Unlock()
	if !already && f.cfg.OnPromote != nil {
		f.cfg.OnPromote(host)
	}
}

func (f *Fetcher) renderFetch(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	f.mu.Lock()
	if f.render == nil {
		render, err := f.cfg.Render()
		if err != nil {
			f.mu.Unlock()
			return crawler.FetchResponse{}, fmt.Errorf("start headless fetcher: %w", err)
		}
		f.render = render
	}
	render := f.render
	f.mu.Unlock()
	return render.Fetch(ctx, rawURL)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
