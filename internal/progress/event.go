package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageAttempt  Stage = "ATTEMPT"
	StageCooldown Stage = "COOLDOWN"
	StageChapter  Stage = "CHAPTER"
	StageRunDone  Stage = "RUN_DONE"
)

// Event captures a single step of a chapter run.
type Event struct {
	// RunID identifies the run that produced the event.
	RunID string
	// BookID is the book being downloaded.
	BookID string
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Index is the zero-based chapter position for CHAPTER and COOLDOWN.
	Index int
	// Total is the chapter count announced at RUN_START.
	Total int
	// Done and Skipped are the final counters carried by RUN_DONE.
	Done    int
	Skipped int
	URL     string
	Attempt int
	Outcome string
	// StatusCode is the HTTP status of an attempt, 0 when the transport failed.
	StatusCode int
	// Status is the run status carried by RUN_START and RUN_DONE.
	Status string
	Dur    time.Duration
	// Note carries error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart:
		if e.Total < 0 {
			return errors.New("run start requires total >= 0")
		}
	case StageAttempt:
		if e.URL == "" {
			return errors.New("attempt requires url")
		}
		if e.Attempt < 1 {
			return errors.New("attempt number must be >= 1")
		}
	case StageCooldown, StageChapter:
		if e.Index < 0 {
			return errors.New("index must be >= 0")
		}
	case StageRunDone:
		if e.Status == "" {
			return errors.New("run done requires status")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
