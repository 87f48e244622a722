// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// ChapterRef identifies one chapter on the catalog page. Num is the ordering
// key taken from the catalog; ID is the opaque chapter identifier from its URL.
type ChapterRef struct {
	Num int    `json:"num"`
	ID  string `json:"id"`
}

// Outcome classifies a single fetch attempt.
type Outcome int

// Attempt outcomes produced by the retry policy.
const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeTerminal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// FetchAttempt is the transient record of one try against a URL.
type FetchAttempt struct {
	URL        string
	Attempt    int
	Outcome    Outcome
	StatusCode int
	Duration   time.Duration
	Err        error
}

// FetchResponse is the result returned by a Fetcher implementation. Body holds
// the raw, undecoded bytes.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Chapter is the cleaned text of one chapter, positioned by Index in the run.
type Chapter struct {
	Index int        `json:"index"`
	Ref   ChapterRef `json:"ref"`
	URL   string     `json:"url"`
	Text  string     `json:"text"`
}

// RunStatus is the terminal state of a run.
type RunStatus string

// Run status values.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
	RunStatusCanceled  RunStatus = "canceled"
)

// FailurePolicy decides what the driver does when one chapter exhausts its
// retry budget.
type FailurePolicy string

// Supported failure policies.
const (
	FailFast   FailurePolicy = "fail_fast"
	SkipFailed FailurePolicy = "skip"
)

// RunResult is the ordered output of one pipeline execution. Status tells an
// aborted run apart from a successful one even when Chapters is non-empty.
type RunResult struct {
	RunID      string       `json:"run_id"`
	BookID     string       `json:"book_id"`
	Status     RunStatus    `json:"status"`
	Chapters   []Chapter    `json:"chapters"`
	Skipped    []ChapterRef `json:"skipped,omitempty"`
	FailedRef  *ChapterRef  `json:"failed_ref,omitempty"`
	Cooldowns  int          `json:"cooldowns"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	ErrorText  string       `json:"error_text,omitempty"`
}

// Texts returns the chapter texts in run order.
func (r RunResult) Texts() []string {
	out := make([]string, 0, len(r.Chapters))
	for _, ch := range r.Chapters {
		out = append(out, ch.Text)
	}
	return out
}

// Succeeded reports whether the run reached the Completed state.
func (r RunResult) Succeeded() bool {
	return r.Status == RunStatusCompleted
}

// RunRecord is the row persisted for each finished run.
type RunRecord struct {
	RunID       string
	BookID      string
	Status      RunStatus
	Chapters    int
	Skipped     int
	ContentHash string
	BlobURI     string
	ErrorText   string
	StartedAt   time.Time
	FinishedAt  time.Time
}
