package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/JakeFAU/chapter-crawler/internal/progress"
)

// StoreSink upserts a run row when a run starts and again when it finishes,
// so an interrupted process leaves a "running" row behind.
type StoreSink struct {
	store  crawler.RunStore
	logger *zap.Logger
	starts map[string]progress.Event
}

// NewStoreSink constructs a StoreSink for the provided store.
func NewStoreSink(store crawler.RunStore, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{store: store, logger: logger, starts: make(map[string]progress.Event)}
}

// Consume persists RUN_START and RUN_DONE events and ignores the rest.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.store == nil {
		return nil
	}
	for _, evt := range batch {
		var record crawler.RunRecord
		switch evt.Stage {
		case progress.StageRunStart:
			s.starts[evt.RunID] = evt
			record = crawler.RunRecord{
				RunID:     evt.RunID,
				BookID:    evt.BookID,
				Status:    crawler.RunStatusRunning,
				StartedAt: evt.TS,
			}
		case progress.StageRunDone:
			started := evt.TS.Add(-evt.Dur)
			if start, ok := s.starts[evt.RunID]; ok {
				started = start.TS
				delete(s.starts, evt.RunID)
			}
			record = crawler.RunRecord{
				RunID:      evt.RunID,
				BookID:     evt.BookID,
				Status:     crawler.RunStatus(evt.Status),
				Chapters:   evt.Done,
				Skipped:    evt.Skipped,
				ErrorText:  evt.Note,
				StartedAt:  started,
				FinishedAt: evt.TS,
			}
		default:
			continue
		}
		if err := s.store.StoreRun(ctx, record); err != nil {
			return fmt.Errorf("store run %s (%s): %w", evt.RunID, evt.Stage, err)
		}
		s.logger.Debug("run row stored", zap.String("run_id", evt.RunID), zap.String("status", string(record.Status)))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
