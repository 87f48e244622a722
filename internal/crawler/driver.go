package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ChapterFetcher is the engine capability the driver needs.
type ChapterFetcher interface {
	FetchOne(ctx context.Context, url string) (string, error)
}

// DriverConfig controls run-level behavior.
type DriverConfig struct {
	FailurePolicy FailurePolicy
}

// Driver walks an ordered list of chapter refs strictly sequentially and
// accumulates their text into a RunResult.
type Driver struct {
	engine   ChapterFetcher
	pacer    *Pacer
	site     Site
	clock    Clock
	ids      IDGenerator
	cfg      DriverConfig
	observer Observer
	logger   *zap.Logger
}

// NewDriver constructs a Driver.
func NewDriver(
	engine ChapterFetcher,
	pacer *Pacer,
	site Site,
	clock Clock,
	ids IDGenerator,
	cfg DriverConfig,
	observer Observer,
	logger *zap.Logger,
) *Driver {
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = FailFast
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		engine:   engine,
		pacer:    pacer,
		site:     site,
		clock:    clock,
		ids:      ids,
		cfg:      cfg,
		observer: observer,
		logger:   logger,
	}
}

// Run processes refs in order. Under FailFast the first terminal failure ends
// the run with ErrRunAborted; chapters gathered so far stay in the result but
// its Status is RunStatusAborted. Under SkipFailed the ref is recorded in
// Skipped and the run continues.
func (d *Driver) Run(ctx context.Context, bookID string, refs []ChapterRef) (RunResult, error) {
	runID, err := d.ids.NewID()
	if err != nil {
		return RunResult{}, fmt.Errorf("generate run id: %w", err)
	}
	result := RunResult{
		RunID:     runID,
		BookID:    bookID,
		Chapters:  make([]Chapter, 0, len(refs)),
		StartedAt: d.clock.Now(),
	}
	logger := d.logger.With(zap.String("run_id", runID), zap.String("book_id", bookID))
	d.observer.RunStarted(runID, bookID, len(refs))
	logger.Info("run started", zap.Int("chapters", len(refs)))

	runErr := d.process(ctx, logger, &result, refs)

	result.FinishedAt = d.clock.Now()
	switch {
	case runErr == nil:
		result.Status = RunStatusCompleted
	case errors.Is(runErr, ErrRunAborted):
		result.Status = RunStatusAborted
		result.ErrorText = runErr.Error()
	case ctx.Err() != nil:
		result.Status = RunStatusCanceled
		result.ErrorText = runErr.Error()
	default:
		result.Status = RunStatusAborted
		result.ErrorText = runErr.Error()
	}
	d.observer.RunFinished(result)
	logger.Info("run finished",
		zap.String("status", string(result.Status)),
		zap.Int("chapters", len(result.Chapters)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("cooldowns", result.Cooldowns),
	)
	return result, runErr
}

func (d *Driver) process(ctx context.Context, logger *zap.Logger, result *RunResult, refs []ChapterRef) error {
	for i, ref := range refs {
		if d.pacer.Due(i) {
			d.observer.CooldownStarted(i, d.pacer.Cooldown())
			logger.Info("batch cooldown", zap.Int("index", i), zap.Duration("delay", d.pacer.Cooldown()))
		}
		paused, err := d.pacer.Before(ctx, i)
		if err != nil {
			return err
		}
		if paused {
			result.Cooldowns++
		}

		url := d.site.ChapterURL(result.BookID, ref.ID)
		text, err := d.engine.FetchOne(ctx, url)
		if err != nil {
			if !IsTerminal(err) {
				return err
			}
			if d.cfg.FailurePolicy == SkipFailed {
				logger.Warn("skipping chapter", zap.Int("index", i), zap.String("url", url), zap.Error(err))
				result.Skipped = append(result.Skipped, ref)
				continue
			}
			failed := ref
			result.FailedRef = &failed
			logger.Error("aborting run", zap.Int("index", i), zap.String("url", url), zap.Error(err))
			return fmt.Errorf("%w: chapter %d (%s): %w", ErrRunAborted, ref.Num, ref.ID, err)
		}

		chapter := Chapter{Index: i, Ref: ref, URL: url, Text: text}
		result.Chapters = append(result.Chapters, chapter)
		d.observer.ChapterExtracted(chapter)
		logger.Debug("chapter extracted",
			zap.Int("index", i),
			zap.String("url", url),
			zap.String("preview", preview(text, 50)),
		)
	}
	return nil
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
