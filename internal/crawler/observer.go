package crawler

import "time"

// Observer receives pipeline events. Implementations must be cheap; they run
// inline on the pipeline goroutine.
type Observer interface {
	RunStarted(runID, bookID string, total int)
	AttemptFinished(attempt FetchAttempt)
	CooldownStarted(index int, d time.Duration)
	ChapterExtracted(chapter Chapter)
	RunFinished(result RunResult)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) RunStarted(string, string, int) {}
func (NopObserver) AttemptFinished(FetchAttempt) {}
func (NopObserver) CooldownStarted(int, time.Duration) {}
func (NopObserver) ChapterExtracted(Chapter) {}
func (NopObserver) RunFinished(RunResult) {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) RunStarted(runID, bookID string, total int) {
	for _, o := range m {
		o.RunStarted(runID, bookID, total)
	}
}

func (m MultiObserver) AttemptFinished(attempt FetchAttempt) {
	for _, o := range m {
		o.AttemptFinished(attempt)
	}
}

func (m MultiObserver) CooldownStarted(index int, d time.Duration) {
	for _, o := range m {
		o.CooldownStarted(index, d)
	}
}

func (m MultiObserver) ChapterExtracted(chapter Chapter) {
	for _, o := range m {
		o.ChapterExtracted(chapter)
	}
}

func (m MultiObserver) RunFinished(result RunResult) {
	for _, o := range m {
		o.RunFinished(result)
	}
}
