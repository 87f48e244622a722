package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Engine fetches one URL at a time with a bounded, fixed-delay retry loop,
// decodes the body and hands the markup to an Extractor. Extraction failures
// share the same attempt budget as network failures.
type Engine struct {
	fetcher   Fetcher
	decoder   Decoder
	extractor Extractor
	policy    RetryPolicy
	pauser    Pauser
	observer  Observer
	logger    *zap.Logger
}

// NewEngine constructs an Engine. A nil observer or logger is replaced by a no-op.
func NewEngine(
	fetcher Fetcher,
	decoder Decoder,
	extractor Extractor,
	policy RetryPolicy,
	pauser Pauser,
	observer Observer,
	logger *zap.Logger,
) *Engine {
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		fetcher:   fetcher,
		decoder:   decoder,
		extractor: extractor,
		policy:    policy,
		pauser:    pauser,
		observer:  observer,
		logger:    logger,
	}
}

// FetchOne returns the extracted text for url. Once the retry budget is spent
// it returns a *TerminalError; a canceled ctx is returned as-is.
func (e *Engine) FetchOne(ctx context.Context, url string) (string, error) {
	for attempt := 1; ; attempt++ {
		start := time.Now()
		text, status, err := e.attempt(ctx, url)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		decision := e.policy.Next(attempt, err)
		e.observer.AttemptFinished(FetchAttempt{
			URL:        url,
			Attempt:    attempt,
			Outcome:    decision.Outcome,
			StatusCode: status,
			Duration:   time.Since(start),
			Err:        err,
		})

		switch decision.Outcome {
		case OutcomeSuccess:
			return text, nil
		case OutcomeTerminal:
			e.logger.Error("retry budget exhausted",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return "", &TerminalError{URL: url, Attempts: attempt, Last: err}
		}

		e.logger.Warn("fetch attempt failed; retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("status_code", status),
			zap.Duration("delay", decision.Delay),
			zap.Error(err),
		)
		if err := e.pauser.Pause(ctx, decision.Delay); err != nil {
			return "", err
		}
	}
}

func (e *Engine) attempt(ctx context.Context, url string) (string, int, error) {
	resp, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	markup, err := e.decoder.Decode(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	if strings.TrimSpace(markup) == "" {
		return "", resp.StatusCode, ErrEmptyBody
	}
	text, err := e.extractor.Extract(markup)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("extract %s: %w", url, err)
	}
	return text, resp.StatusCode, nil
}

// IsTerminal reports whether err ended an item's retry loop.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminal)
}
