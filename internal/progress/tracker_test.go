package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerStartsIdle(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	snap := tr.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.False(t, snap.Active)
	assert.Nil(t, snap.StartedAt)
}

func TestTrackerFoldsRun(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(s int) time.Time { return base.Add(time.Duration(s) * time.Second) }

	require.NoError(t, tr.Consume(context.Background(), []Event{
		{RunID: "r1", BookID: "9", TS: at(0), Stage: StageRunStart, Total: 12, Status: "running"},
		{RunID: "r1", TS: at(1), Stage: StageAttempt, URL: "u1", Attempt: 1, Outcome: "retryable", Note: "503"},
		{RunID: "r1", TS: at(2), Stage: StageAttempt, URL: "u1", Attempt: 2, Outcome: "success"},
		{RunID: "r1", TS: at(3), Stage: StageChapter, Index: 0, URL: "u1"},
	}))
	snap := tr.Snapshot()
	assert.True(t, snap.Active)
	assert.True(t, tr.Active())
	assert.Equal(t, "9", snap.BookID)
	assert.Equal(t, 12, snap.Total)
	assert.Equal(t, 2, snap.Attempts)
	assert.Equal(t, 1, snap.Retries)
	assert.Equal(t, 1, snap.Done)
	assert.Equal(t, "u1", snap.LastURL)
	assert.Equal(t, "503", snap.LastError)
	require.NotNil(t, snap.UpdatedAt)
	assert.Equal(t, at(3), *snap.UpdatedAt)

	require.NoError(t, tr.Consume(context.Background(), []Event{
		{RunID: "r1", TS: at(4), Stage: StageCooldown, Index: 10, Dur: 20 * time.Second},
		{RunID: "r1", TS: at(5), Stage: StageRunDone, Status: "completed", Done: 11, Skipped: 1},
	}))
	snap = tr.Snapshot()
	assert.False(t, snap.Active)
	assert.Equal(t, "completed", snap.Status)
	assert.Equal(t, 1, snap.Cooldowns)
	assert.Equal(t, 11, snap.Done)
	assert.Equal(t, 1, snap.Skipped)
	require.NotNil(t, snap.FinishedAt)
	assert.Equal(t, at(5), *snap.FinishedAt)
}

func TestTrackerIgnoresStaleRuns(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	now := time.Now()
	require.NoError(t, tr.Consume(context.Background(), []Event{
		{RunID: "r2", TS: now, Stage: StageRunStart, Total: 1, Status: "running"},
		{RunID: "r1", TS: now, Stage: StageChapter, Index: 4},
	}))
	assert.Equal(t, 0, tr.Snapshot().Done)

	require.NoError(t, tr.Consume(context.Background(), []Event{
		{RunID: "r3", TS: now, Stage: StageRunStart, Total: 5, Status: "running"},
	}))
	snap := tr.Snapshot()
	assert.Equal(t, "r3", snap.RunID)
	assert.Equal(t, 5, snap.Total)
}
