package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTerminal marks an item whose retry budget is exhausted.
	ErrTerminal = errors.New("retry budget exhausted")
	// ErrRunAborted is returned by the driver when a terminal failure stops the run.
	ErrRunAborted = errors.New("run aborted")
	// ErrEmptyBody is a retryable error for a 2xx response without content.
	ErrEmptyBody = errors.New("empty response body")
)

// StatusError reports a non-2xx HTTP response. It is always retryable.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// TerminalError is returned once an item has used all of its attempts.
type TerminalError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("giving up on %s after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

// Is makes errors.Is(err, ErrTerminal) hold for every TerminalError.
func (e *TerminalError) Is(target error) bool {
	return target == ErrTerminal
}

func (e *TerminalError) Unwrap() error {
	return e.Last
}
