package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/JakeFAU/chapter-crawler/internal/storage"
)

const (
	// DefaultSeparator joins chapter texts in the book file.
	DefaultSeparator = "\n\n"
	// BookListName is the object holding every discovered book ID.
	BookListName = "list_id.json"
)

// Config controls where artifacts are written and announced.
type Config struct {
	Prefix    string
	Topic     string
	Separator string
}

// Writer persists finished runs. Every dependency except the blob store is
// optional.
type Writer struct {
	blobs     crawler.BlobStore
	runs      crawler.RunStore
	publisher crawler.Publisher
	hasher    crawler.Hasher
	clock     crawler.Clock
	cfg       Config
	logger    *zap.Logger
}

// NewWriter constructs a Writer.
func NewWriter(
	blobs crawler.BlobStore,
	runs crawler.RunStore,
	publisher crawler.Publisher,
	hasher crawler.Hasher,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Writer {
	if cfg.Separator == "" {
		cfg.Separator = DefaultSeparator
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		blobs:     blobs,
		runs:      runs,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunSummary is the notification published after each run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	BookID     string    `json:"book_id"`
	Status     string    `json:"status"`
	Chapters   int       `json:"chapters"`
	Skipped    int       `json:"skipped"`
	BlobURI    string    `json:"blob_uri,omitempty"`
	Hash       string    `json:"hash,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Timestamp  string    `json:"timestamp"`
}

// Attributes exposes the routing keys as Pub/Sub message attributes.
func (s RunSummary) Attributes() map[string]string {
	return map[string]string{
		"book_id": s.BookID,
		"status":  s.Status,
	}
}

// BookPath returns the object path of a book's text file.
func (w *Writer) BookPath(bookID string) string {
	return storage.ObjectPath(w.cfg.Prefix, bookID+".txt")
}

// WriteRun stores the book file for a completed run, then records and
// announces the run. Aborted and canceled runs get a row and a notification
// but no file.
func (w *Writer) WriteRun(ctx context.Context, result crawler.RunResult) (crawler.RunRecord, error) {
	record := crawler.RunRecord{
		RunID:      result.RunID,
		BookID:     result.BookID,
		Status:     result.Status,
		Chapters:   len(result.Chapters),
		Skipped:    len(result.Skipped),
		ErrorText:  result.ErrorText,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	logger := w.logger.With(zap.String("run_id", result.RunID), zap.String("book_id", result.BookID))

	if result.Succeeded() {
		body := []byte(strings.Join(result.Texts(), w.cfg.Separator))
		if w.hasher != nil {
			hash, err := w.hasher.Hash(body)
			if err != nil {
				return record, fmt.Errorf("hash book: %w", err)
			}
			record.ContentHash = hash
		}
		uri, err := w.blobs.PutObject(ctx, w.BookPath(result.BookID), storage.ContentTypeText, bytes.NewReader(body))
		if err != nil {
			return record, fmt.Errorf("put book %s: %w", result.BookID, err)
		}
		record.BlobURI = uri
		logger.Info("book written", zap.String("blob_uri", uri), zap.Int("bytes", len(body)))
	}

	if w.runs != nil {
		if err := w.runs.StoreRun(ctx, record); err != nil {
			return record, fmt.Errorf("store run: %w", err)
		}
	}
	if err := w.publish(ctx, record); err != nil {
		return record, err
	}
	return record, nil
}

func (w *Writer) publish(ctx context.Context, record crawler.RunRecord) error {
	if w.cfg.Topic == "" || w.publisher == nil {
		return nil
	}
	now := time.Now().UTC()
	if w.clock != nil {
		now = w.clock.Now()
	}
	summary := RunSummary{
		RunID:      record.RunID,
		BookID:     record.BookID,
		Status:     string(record.Status),
		Chapters:   record.Chapters,
		Skipped:    record.Skipped,
		BlobURI:    record.BlobURI,
		Hash:       record.ContentHash,
		Error:      record.ErrorText,
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
		Timestamp:  now.Format(time.RFC3339),
	}
	id, err := w.publisher.Publish(ctx, w.cfg.Topic, summary)
	if err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}
	w.logger.Info("run published",
		zap.String("run_id", record.RunID),
		zap.String("topic", w.cfg.Topic),
		zap.String("message_id", id),
	)
	return nil
}

// MergeBookIDs unions ids with the IDs already stored in list_id.json and
// writes the sorted result back. It returns the merged list and the object URI.
func (w *Writer) MergeBookIDs(ctx context.Context, ids []string) ([]string, string, error) {
	objectPath := storage.ObjectPath(w.cfg.Prefix, BookListName)
	existing, err := w.loadBookIDs(ctx, objectPath)
	if err != nil {
		return nil, "", err
	}

	seen := make(map[string]struct{}, len(existing)+len(ids))
	merged := make([]string, 0, len(existing)+len(ids))
	for _, id := range append(existing, ids...) {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	sort.Strings(merged)

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("marshal book ids: %w", err)
	}
	uri, err := w.blobs.PutObject(ctx, objectPath, storage.ContentTypeJSON, bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("put %s: %w", BookListName, err)
	}
	w.logger.Info("book list merged",
		zap.Int("existing", len(existing)),
		zap.Int("discovered", len(ids)),
		zap.Int("total", len(merged)),
		zap.String("blob_uri", uri),
	)
	return merged, uri, nil
}

func (w *Writer) loadBookIDs(ctx context.Context, objectPath string) ([]string, error) {
	data, err := w.blobs.GetObject(ctx, objectPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", BookListName, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", BookListName, err)
	}
	return ids, nil
}
