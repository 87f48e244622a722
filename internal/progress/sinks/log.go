package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/chapter-crawler/internal/progress"
)

// LogSink writes each event as a structured log line. Attempt and chapter
// events are logged at debug level; run boundaries at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		level := zapcore.DebugLevel
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageRunStart:
			level = zapcore.InfoLevel
			fields = append(fields, zap.String("book_id", evt.BookID), zap.Int("total", evt.Total))
		case progress.StageAttempt:
			fields = append(fields,
				zap.String("url", evt.URL),
				zap.Int("attempt", evt.Attempt),
				zap.String("outcome", evt.Outcome),
				zap.Int("status_code", evt.StatusCode),
				zap.Duration("dur", evt.Dur),
			)
		case progress.StageCooldown:
			fields = append(fields, zap.Int("index", evt.Index), zap.Duration("dur", evt.Dur))
		case progress.StageChapter:
			fields = append(fields, zap.Int("index", evt.Index), zap.String("url", evt.URL))
		case progress.StageRunDone:
			level = zapcore.InfoLevel
			fields = append(fields,
				zap.String("status", evt.Status),
				zap.Int("done", evt.Done),
				zap.Int("skipped", evt.Skipped),
				zap.Duration("dur", evt.Dur),
			)
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Log(level, "progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
