package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves the raw bytes behind a URL. Non-2xx responses are returned
// without error so the engine can classify them.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Decoder turns raw response bytes into markup.
type Decoder interface {
	Decode(body []byte) (string, error)
}

// Extractor pulls the content text out of decoded markup.
type Extractor interface {
	Extract(markup string) (string, error)
}

// Pauser suspends the caller for a fixed duration or until ctx is done.
type Pauser interface {
	Pause(ctx context.Context, d time.Duration) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests for written artifacts.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// BlobStore writes and reads output artifacts.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// RunStore persists one record per finished run.
type RunStore interface {
	StoreRun(ctx context.Context, record RunRecord) error
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
