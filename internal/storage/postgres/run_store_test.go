package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestStoreRunUpsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "book_runs")
	require.NoError(t, err)

	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(5 * time.Minute)
	hash := "abc123"
	uri := "gs://bucket/books/51434.txt"

	rec := crawler.RunRecord{
		RunID:       "run-1",
		BookID:      "51434",
		Status:      crawler.RunStatusCompleted,
		Chapters:    25,
		ContentHash: hash,
		BlobURI:     uri,
		StartedAt:   started,
		FinishedAt:  finished,
	}

	mock.ExpectExec("INSERT INTO book_runs").
		WithArgs(
			"run-1",
			"51434",
			"completed",
			25,
			0,
			&hash,
			&uri,
			(*string)(nil),
			started,
			&finished,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.StoreRun(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRunRunningRowHasNoFinish(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "")
	require.NoError(t, err)

	started := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("INSERT INTO book_runs").
		WithArgs("run-2", "7", "running", 0, 0, (*string)(nil), (*string)(nil), (*string)(nil), started, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.StoreRun(context.Background(), crawler.RunRecord{
		RunID:     "run-2",
		BookID:    "7",
		Status:    crawler.RunStatusRunning,
		StartedAt: started,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRunPropagatesError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "runs")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO runs").WillReturnError(errors.New("conn refused"))
	err = store.StoreRun(context.Background(), crawler.RunRecord{RunID: "r", StartedAt: time.Now()})
	require.ErrorContains(t, err, "conn refused")
}

func TestRunStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRunStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRunStoreWithPool(mock, "runs; DROP TABLE x")
	require.Error(t, err)

	store, err := NewRunStoreWithPool(mock, "runs")
	require.NoError(t, err)
	require.Error(t, store.StoreRun(context.Background(), crawler.RunRecord{}))

	_, err = NewRunStore(context.Background(), RunStoreConfig{})
	require.Error(t, err)

	var nilStore *RunStore
	nilStore.Close()
	require.Error(t, nilStore.StoreRun(context.Background(), crawler.RunRecord{RunID: "x"}))
}

func TestRunStorePing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, store.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("no route to host"))
	require.ErrorContains(t, store.Ping(context.Background()), "no route to host")
	require.NoError(t, mock.ExpectationsWereMet())

	var nilStore *RunStore
	require.Error(t, nilStore.Ping(context.Background()))
}
