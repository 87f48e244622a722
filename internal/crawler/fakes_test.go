package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

type recordingPauser struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (p *recordingPauser) Pause(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.pauses = append(p.pauses, d)
	p.mu.Unlock()
	return ctx.Err()
}

func (p *recordingPauser) recorded() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.pauses...)
}

// scriptedFetcher fails the first fails[url] calls for a URL, then serves
// bodies[url] (or a default chapter page).
type scriptedFetcher struct {
	mu     sync.Mutex
	calls  map[string]int
	order  []string
	fails  map[string]int
	status int
	bodies map[string]string
	err    error
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		calls:  make(map[string]int),
		fails:  make(map[string]int),
		bodies: make(map[string]string),
		status: http.StatusServiceUnavailable,
	}
}

func (f *scriptedFetcher) Fetch(_ context.Context, url string) (FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	f.order = append(f.order, url)
	if f.calls[url] <= f.fails[url] {
		if f.err != nil {
			return FetchResponse{URL: url}, f.err
		}
		return FetchResponse{URL: url, StatusCode: f.status}, nil
	}
	body, ok := f.bodies[url]
	if !ok {
		body = "text of " + url
	}
	return FetchResponse{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (f *scriptedFetcher) callsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *scriptedFetcher) visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// utf8Decoder passes bytes through so tests can use plain strings.
type utf8Decoder struct{}

func (utf8Decoder) Decode(body []byte) (string, error) {
	return string(body), nil
}

var errNoAnchor = errors.New("anchor missing")

// echoExtractor returns the markup unless it equals "no-anchor".
type echoExtractor struct{}

func (echoExtractor) Extract(markup string) (string, error) {
	if markup == "no-anchor" {
		return "", errNoAnchor
	}
	return markup, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type fakeIDGen struct {
	next int
}

func (g *fakeIDGen) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("run-%d", g.next), nil
}

type countingObserver struct {
	NopObserver
	attempts  []FetchAttempt
	cooldowns []int
	chapters  []Chapter
	finished  *RunResult
}

func (o *countingObserver) AttemptFinished(a FetchAttempt) {
	o.attempts = append(o.attempts, a)
}

func (o *countingObserver) CooldownStarted(index int, _ time.Duration) {
	o.cooldowns = append(o.cooldowns, index)
}

func (o *countingObserver) ChapterExtracted(ch Chapter) {
	o.chapters = append(o.chapters, ch)
}

func (o *countingObserver) RunFinished(r RunResult) {
	o.finished = &r
}
