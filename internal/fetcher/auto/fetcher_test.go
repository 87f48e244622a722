package auto

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/JakeFAU/chapter-crawler/internal/headless/detector"
)

type stubFetcher struct {
	mu    sync.Mutex
	name  string
	body  string
	calls []string
	err   error
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (crawler.FetchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, url)
	if s.err != nil {
		return crawler.FetchResponse{}, s.err
	}
	return crawler.FetchResponse{URL: url, StatusCode: http.StatusOK, Body: []byte(s.body)}, nil
}

func (s *stubFetcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newFetcher(t *testing.T, probe, render *stubFetcher, builds *int, promoted *[]string) *Fetcher {
	t.Helper()
	f, err := New(Config{
		Probe: probe,
		Render: func() (crawler.Fetcher, error) {
			*builds++
			return render, nil
		},
		Detector: detector.NewHeuristic(0),
		OnPromote: func(host string) {
			*promoted = append(*promoted, host)
		},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return f
}

func TestFetchUsesProbeForNormalPages(t *testing.T) {
	t.Parallel()

	probe := &stubFetcher{body: "<html><body><p>chapter text that is long enough</p></body></html>"}
	render := &stubFetcher{body: "rendered"}
	builds := 0
	var promoted []string
	f := newFetcher(t, probe, render, &builds, &promoted)

	resp, err := f.Fetch(context.Background(), "https://example.com/txt/1/2")
	require.NoError(t, err)
	require.Contains(t, string(resp.Body), "chapter text")
	require.Zero(t, builds)
	require.Zero(t, render.count())
	require.Empty(t, promoted)
}

func TestFetchPromotesHostOnChallenge(t *testing.T) {
	t.Parallel()

	probe := &stubFetcher{body: "<title>Just a moment...</title>"}
	render := &stubFetcher{body: "rendered"}
	builds := 0
	var promoted []string
	f := newFetcher(t, probe, render, &builds, &promoted)

	resp, err := f.Fetch(context.Background(), "https://example.com/txt/1/2")
	require.NoError(t, err)
	require.Equal(t, "rendered", string(resp.Body))

	_, err = f.Fetch(context.Background(), "https://example.com/txt/1/3")
	require.NoError(t, err)

	require.Equal(t, 1, probe.count())
	require.Equal(t, 2, render.count())
	require.Equal(t, 1, builds)
	require.Equal(t, []string{"example.com"}, promoted)
	require.True(t, f.Promoted("example.com"))
	require.False(t, f.Promoted("other.example"))
}

func TestFetchReturnsProbeError(t *testing.T) {
	t.Parallel()

	probe := &stubFetcher{err: errors.New("dial failed")}
	render := &stubFetcher{}
	builds := 0
	var promoted []string
	f := newFetcher(t, probe, render, &builds, &promoted)

	_, err := f.Fetch(context.Background(), "https://example.com/")
	require.ErrorContains(t, err, "dial failed")
	require.Zero(t, render.count())
}

func TestFetchRenderFactoryError(t *testing.T) {
	t.Parallel()

	f, err := New(Config{
		Probe:    &stubFetcher{body: ""},
		Render:   func() (crawler.Fetcher, error) { return nil, errors.New("no chrome") },
		Detector: detector.NewHeuristic(0),
	}, nil)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "https://example.com/")
	require.ErrorContains(t, err, "no chrome")
}

func TestNewRequiresBackends(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)
}
