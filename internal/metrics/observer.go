package metrics

import (
	"time"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
)

// Observer feeds pipeline events into the collectors. Init must have run.
type Observer struct{}

var _ crawler.Observer = Observer{}

func (Observer) RunStarted(string, string, int) {
	RunStarted()
}

func (Observer) AttemptFinished(a crawler.FetchAttempt) {
	ObserveFetchAttempt(a.URL, a.Outcome.String(), a.Duration)
}

func (Observer) CooldownStarted(int, time.Duration) {
	ObserveCooldown()
}

func (Observer) ChapterExtracted(crawler.Chapter) {
	ObserveChapter()
}

func (Observer) RunFinished(r crawler.RunResult) {
	RunFinished(string(r.Status))
}
