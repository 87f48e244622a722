// Package headless contains fetchers that execute JavaScript via browsers.
package headless

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultNavTimeout = 45 * time.Second

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// Origin is the page the browser sits on while fetching. When empty the
	// origin of each requested URL is used.
	Origin  string
	Headers http.Header
	Cookies map[string]string
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// Fetcher implements crawler.Fetcher by running fetch() inside a page loaded
// from the target origin, so the request carries the browser's same-origin
// credentials. Calls are serialized over a single tab.
type Fetcher struct {
	cfg         Config
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc

	mu        sync.Mutex
	tab       context.Context
	tabCancel context.CancelFunc
	origin    string
}

// NewChromedp creates a headless fetcher backed by chromedp. The browser is
// started lazily on the first Fetch.
func NewChromedp(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.NavigationTimeout < 0 {
		return nil, errors.New("navigation timeout must be >= 0")
	}
	if cfg.Origin != "" {
		origin, err := originOf(cfg.Origin)
		if err != nil {
			return nil, err
		}
		cfg.Origin = origin
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		logger:      logger,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the tab and the browser down.
func (f *Fetcher) Close() {
	f.mu.Lock()
	if f.tabCancel != nil {
		f.tabCancel()
		f.tab, f.tabCancel, f.origin = nil, nil, ""
	}
	f.mu.Unlock()
	f.allocCancel()
}

// Fetch issues GET rawURL from inside the page and returns the undecoded
// body. Non-2xx statuses are reported without error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	origin := f.cfg.Origin
	if origin == "" {
		o, err := originOf(rawURL)
		if err != nil {
			return crawler.FetchResponse{URL: rawURL}, err
		}
		origin = o
	}

	start := time.Now()
	if err := f.ensureSession(ctx, origin); err != nil {
		return crawler.FetchResponse{URL: rawURL}, err
	}

	script, err := fetchScript(rawURL)
	if err != nil {
		return crawler.FetchResponse{URL: rawURL}, err
	}

	runCtx, cancel := context.WithTimeout(f.tab, f.navTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var res pageFetchResult
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &res, awaitPromise)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return crawler.FetchResponse{URL: rawURL}, fmt.Errorf("headless fetch canceled: %w", ctxErr)
		}
		return crawler.FetchResponse{URL: rawURL}, fmt.Errorf("in-page fetch: %w", err)
	}
	return res.toResponse(rawURL, time.Since(start))
}

// ensureSession makes sure the tab exists and is parked on origin.
func (f *Fetcher) ensureSession(ctx context.Context, origin string) error {
	if f.tab != nil && f.origin == origin {
		return nil
	}
	if f.tab == nil {
		tab, tabCancel := chromedp.NewContext(f.allocator)
		// The first Run starts the browser; it must not carry a deadline.
		if err := chromedp.Run(tab); err != nil {
			tabCancel()
			return fmt.Errorf("start browser: %w", err)
		}
		f.tab, f.tabCancel = tab, tabCancel
	}

	navCtx, cancel := context.WithTimeout(f.tab, f.navTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(navCtx, meta.captureEvent)

	actions := []chromedp.Action{
		f.networkSetupAction(origin),
		chromedp.Navigate(origin + "/"),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := chromedp.Run(navCtx, actions...); err != nil {
		f.tabCancel()
		f.tab, f.tabCancel, f.origin = nil, nil, ""
		return fmt.Errorf("open origin %s: %w", origin, err)
	}

	status, _, landed := meta.snapshotWithFallbacks(origin+"/", "")
	if status >= http.StatusBadRequest {
		f.logger.Warn("origin page returned an error status; in-page fetches may be challenged",
			zap.String("url", landed),
			zap.Int("status_code", status),
		)
	}
	f.origin = origin
	return nil
}

func (f *Fetcher) networkSetupAction(origin string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(f.cfg.Headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(f.cfg.Headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		if len(f.cfg.Cookies) > 0 {
			if err := network.SetCookies(toCookieParams(origin, f.cfg.Cookies)).Do(ctx); err != nil {
				return fmt.Errorf("set cookies: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return defaultNavTimeout
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// pageFetchResult mirrors the object returned by fetchScript.
type pageFetchResult struct {
	Status      int    `json:"status"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

func (r pageFetchResult) toResponse(requestURL string, elapsed time.Duration) (crawler.FetchResponse, error) {
	body, err := base64.StdEncoding.DecodeString(r.Body)
	if err != nil {
		return crawler.FetchResponse{URL: requestURL, StatusCode: r.Status}, fmt.Errorf("decode page body: %w", err)
	}
	headers := http.Header{}
	if r.ContentType != "" {
		headers.Set("Content-Type", r.ContentType)
	}
	finalURL := r.URL
	if finalURL == "" {
		finalURL = requestURL
	}
	return crawler.FetchResponse{
		URL:        finalURL,
		StatusCode: r.Status,
		Headers:    headers,
		Body:       body,
		Duration:   elapsed,
	}, nil
}

// fetchScript builds the in-page request. The body travels back base64
// encoded so no charset conversion happens in the browser.
func fetchScript(rawURL string) (string, error) {
	target, err := json.Marshal(rawURL)
	if err != nil {
		return "", fmt.Errorf("encode url: %w", err)
	}
	return `(async () => {
  const r = await fetch(` + string(target) + `, {credentials: 'same-origin'});
  const buf = new Uint8Array(await r.arrayBuffer());
  let bin = '';
  for (let i = 0; i < buf.length; i += 0x8000) {
    bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
  }
  return {status: r.status, url: r.url, contentType: r.headers.get('content-type') || '', body: btoa(bin)};
})()`, nil
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: http.Header{},
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	m.mu.RLock()
	status, headers, url := m.status, m.headers.Clone(), m.url
	m.mu.RUnlock()

	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}

func toCookieParams(origin string, cookies map[string]string) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for name, value := range cookies {
		params = append(params, &network.CookieParam{Name: name, Value: value, URL: origin + "/"})
	}
	return params
}
