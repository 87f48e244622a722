package progress

import (
	"time"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
)

// Reporter adapts pipeline callbacks into Events. It remembers the current run
// so per-attempt events can be tagged; it must only be driven by the pipeline
// goroutine.
type Reporter struct {
	emitter Emitter
	now     func() time.Time
	runID   string
	bookID  string
}

var _ crawler.Observer = (*Reporter)(nil)

// NewReporter returns a Reporter that emits to e. A nil now uses time.Now.
func NewReporter(e Emitter, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{emitter: e, now: now}
}

func (r *Reporter) emit(evt Event) {
	if r.emitter == nil {
		return
	}
	evt.RunID = r.runID
	evt.BookID = r.bookID
	evt.TS = r.now().UTC()
	r.emitter.Emit(evt)
}

// RunStarted implements crawler.Observer.
func (r *Reporter) RunStarted(runID, bookID string, total int) {
	r.runID = runID
	r.bookID = bookID
	r.emit(Event{Stage: StageRunStart, Total: total, Status: string(crawler.RunStatusRunning)})
}

// AttemptFinished implements crawler.Observer.
func (r *Reporter) AttemptFinished(a crawler.FetchAttempt) {
	evt := Event{
		Stage:      StageAttempt,
		URL:        a.URL,
		Attempt:    a.Attempt,
		Outcome:    a.Outcome.String(),
		StatusCode: a.StatusCode,
		Dur:        a.Duration,
	}
	if a.Err != nil {
		evt.Note = a.Err.Error()
	}
	r.emit(evt)
}

// CooldownStarted implements crawler.Observer.
func (r *Reporter) CooldownStarted(index int, d time.Duration) {
	r.emit(Event{Stage: StageCooldown, Index: index, Dur: d})
}

// ChapterExtracted implements crawler.Observer.
func (r *Reporter) ChapterExtracted(ch crawler.Chapter) {
	r.emit(Event{Stage: StageChapter, Index: ch.Index, URL: ch.URL})
}

// RunFinished implements crawler.Observer.
func (r *Reporter) RunFinished(res crawler.RunResult) {
	r.emit(Event{
		Stage:   StageRunDone,
		Status:  string(res.Status),
		Done:    len(res.Chapters),
		Skipped: len(res.Skipped),
		Dur:     nonNegative(res.FinishedAt.Sub(res.StartedAt)),
		Note:    res.ErrorText,
	})
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
