package output

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/JakeFAU/chapter-crawler/internal/hash/sha256"
	pubmemory "github.com/JakeFAU/chapter-crawler/internal/publisher/memory"
	"github.com/JakeFAU/chapter-crawler/internal/storage"
	"github.com/JakeFAU/chapter-crawler/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeRunStore struct {
	records []crawler.RunRecord
	err     error
}

func (f *fakeRunStore) StoreRun(_ context.Context, record crawler.RunRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func completedRun() crawler.RunResult {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	return crawler.RunResult{
		RunID:  "run-1",
		BookID: "51234",
		Status: crawler.RunStatusCompleted,
		Chapters: []crawler.Chapter{
			{Index: 0, Text: "第一章"},
			{Index: 1, Text: "第二章"},
		},
		Skipped:    []crawler.ChapterRef{{Num: 3, ID: "9"}},
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
	}
}

func TestWriteRunCompleted(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	runs := &fakeRunStore{}
	pub := pubmemory.New()
	now := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	w := NewWriter(blobs, runs, pub, sha256.New(), fixedClock{now}, Config{Prefix: "books", Topic: "runs"}, nil)

	record, err := w.WriteRun(context.Background(), completedRun())
	require.NoError(t, err)

	data, err := blobs.GetObject(context.Background(), "books/51234.txt")
	require.NoError(t, err)
	assert.Equal(t, "第一章\n\n第二章", string(data))

	want, err := sha256.New().Hash(data)
	require.NoError(t, err)
	assert.Equal(t, want, record.ContentHash)
	assert.Equal(t, "memory://books/51234.txt", record.BlobURI)
	assert.Equal(t, 2, record.Chapters)
	assert.Equal(t, 1, record.Skipped)

	require.Len(t, runs.records, 1)
	assert.Equal(t, record, runs.records[0])

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "runs", msgs[0].Topic)
	summary, ok := msgs[0].Payload.(RunSummary)
	require.True(t, ok)
	assert.Equal(t, "completed", summary.Status)
	assert.Equal(t, record.BlobURI, summary.BlobURI)
	assert.Equal(t, "2024-06-01T10:05:00Z", summary.Timestamp)
	assert.Equal(t, map[string]string{"book_id": "51234", "status": "completed"}, summary.Attributes())
}

func TestWriteRunAbortedSkipsBookFile(t *testing.T) {
	t.Parallel()

	blobs := &storage.MockBlobStore{}
	runs := &fakeRunStore{}
	w := NewWriter(blobs, runs, nil, sha256.New(), nil, Config{}, nil)

	result := completedRun()
	result.Status = crawler.RunStatusAborted
	result.ErrorText = "run aborted: chapter 3"

	record, err := w.WriteRun(context.Background(), result)
	require.NoError(t, err)
	assert.Empty(t, record.BlobURI)
	assert.Empty(t, record.ContentHash)
	require.Len(t, runs.records, 1)
	assert.Equal(t, crawler.RunStatusAborted, runs.records[0].Status)
	assert.Equal(t, "run aborted: chapter 3", runs.records[0].ErrorText)
	blobs.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWriteRunCustomSeparator(t *testing.T) {
	t.Parallel()

	blobs := &storage.MockBlobStore{}
	blobs.On("PutObject", mock.Anything, "51234.txt", storage.ContentTypeText, "第一章\n第二章").
		Return("file:///out/51234.txt", nil).Once()
	w := NewWriter(blobs, nil, nil, nil, nil, Config{Separator: "\n"}, nil)

	record, err := w.WriteRun(context.Background(), completedRun())
	require.NoError(t, err)
	assert.Equal(t, "file:///out/51234.txt", record.BlobURI)
	blobs.AssertExpectations(t)
}

func TestWriteRunPropagatesFailures(t *testing.T) {
	t.Parallel()

	t.Run("blob store", func(t *testing.T) {
		t.Parallel()
		blobs := &storage.MockBlobStore{}
		blobs.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("disk full"))
		runs := &fakeRunStore{}
		w := NewWriter(blobs, runs, nil, nil, nil, Config{}, nil)

		_, err := w.WriteRun(context.Background(), completedRun())
		require.ErrorContains(t, err, "disk full")
		assert.Empty(t, runs.records)
	})

	t.Run("run store", func(t *testing.T) {
		t.Parallel()
		runs := &fakeRunStore{err: errors.New("db down")}
		pub := pubmemory.New()
		w := NewWriter(memory.NewBlobStore(), runs, pub, nil, nil, Config{Topic: "runs"}, nil)

		_, err := w.WriteRun(context.Background(), completedRun())
		require.ErrorIs(t, err, runs.err)
		assert.Empty(t, pub.Messages())
	})

	t.Run("publisher", func(t *testing.T) {
		t.Parallel()
		pub := pubmemory.New()
		pub.Err = errors.New("topic gone")
		w := NewWriter(memory.NewBlobStore(), nil, pub, nil, nil, Config{Topic: "runs"}, nil)

		_, err := w.WriteRun(context.Background(), completedRun())
		require.ErrorIs(t, err, pub.Err)
	})
}

func TestMergeBookIDs(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	w := NewWriter(blobs, nil, nil, nil, nil, Config{Prefix: "out"}, nil)

	merged, uri, err := w.MergeBookIDs(context.Background(), []string{"300", "100", "300"})
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "300"}, merged)
	assert.Equal(t, "memory://out/list_id.json", uri)

	merged, _, err = w.MergeBookIDs(context.Background(), []string{"200", " 100 ", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "200", "300"}, merged)

	data, err := blobs.GetObject(context.Background(), "out/list_id.json")
	require.NoError(t, err)
	var stored []string
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, merged, stored)
	assert.Contains(t, string(data), "\n  \"100\"")
}

func TestMergeBookIDsRejectsCorruptList(t *testing.T) {
	t.Parallel()

	blobs := &storage.MockBlobStore{}
	blobs.On("GetObject", mock.Anything, BookListName).Return([]byte("{not json"), nil)
	w := NewWriter(blobs, nil, nil, nil, nil, Config{}, nil)

	_, _, err := w.MergeBookIDs(context.Background(), []string{"1"})
	require.ErrorContains(t, err, "decode list_id.json")
	blobs.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMergeBookIDsReadError(t *testing.T) {
	t.Parallel()

	blobs := &storage.MockBlobStore{}
	blobs.On("GetObject", mock.Anything, BookListName).Return(nil, errors.New("permission denied"))
	w := NewWriter(blobs, nil, nil, nil, nil, Config{}, nil)

	_, _, err := w.MergeBookIDs(context.Background(), nil)
	require.ErrorContains(t, err, "permission denied")
}
