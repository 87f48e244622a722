package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/JakeFAU/chapter-crawler/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "path/51434.txt", storage.ContentTypeText, bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://path/51434.txt", uri)

	payload[0] = 'C'
	got, err := store.GetObject(context.Background(), "path/51434.txt")
	require.NoError(t, err)
	require.Equal(t, "content", string(got))

	got[0] = 'X'
	again, err := store.GetObject(context.Background(), "path/51434.txt")
	require.NoError(t, err)
	require.Equal(t, "content", string(again))
	require.Equal(t, []string{"path/51434.txt"}, store.Paths())
}

func TestBlobStoreGetMissing(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().GetObject(context.Background(), "nope")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	require.Error(t, err)
}
