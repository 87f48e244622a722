package progress

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
)

// Snapshot is the progress view of the most recent run.
type Snapshot struct {
	RunID      string     `json:"run_id,omitempty"`
	BookID     string     `json:"book_id,omitempty"`
	Status     string     `json:"status"`
	Active     bool       `json:"active"`
	Total      int        `json:"total"`
	Done       int        `json:"done"`
	Skipped    int        `json:"skipped"`
	Attempts   int        `json:"attempts"`
	Retries    int        `json:"retries"`
	Cooldowns  int        `json:"cooldowns"`
	LastURL    string     `json:"last_url,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// StatusIdle is reported before any run has started.
const StatusIdle = "idle"

// Tracker is a Sink folding events into a Snapshot. Snapshot is safe to call
// from any goroutine.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker returns an idle Tracker.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Status: StatusIdle}}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Active reports whether a run is in progress.
func (t *Tracker) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Active
}

// Consume implements Sink.
func (t *Tracker) Consume(_ context.Context, batch []Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, evt := range batch {
		t.apply(evt)
	}
	return nil
}

// Close implements Sink.
func (t *Tracker) Close(context.Context) error {
	return nil
}

func (t *Tracker) apply(evt Event) {
	if evt.Stage == StageRunStart {
		ts := evt.TS
		t.snap = Snapshot{
			RunID:     evt.RunID,
			BookID:    evt.BookID,
			Status:    evt.Status,
			Active:    true,
			Total:     evt.Total,
			StartedAt: &ts,
		}
	} else if evt.RunID != t.snap.RunID {
		return
	}
	ts := evt.TS
	t.snap.UpdatedAt = &ts

	switch evt.Stage {
	case StageAttempt:
		t.snap.Attempts++
		if evt.Outcome == crawler.OutcomeRetryable.String() {
			t.snap.Retries++
		}
		t.snap.LastURL = evt.URL
		if evt.Note != "" {
			t.snap.LastError = evt.Note
		}
	case StageCooldown:
		t.snap.Cooldowns++
	case StageChapter:
		t.snap.Done++
		t.snap.LastURL = evt.URL
	case StageRunDone:
		t.snap.Active = false
		t.snap.Status = evt.Status
		t.snap.Done = evt.Done
		t.snap.Skipped = evt.Skipped
		t.snap.FinishedAt = &ts
		if evt.Note != "" {
			t.snap.LastError = evt.Note
		}
	}
}
