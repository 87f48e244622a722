package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockBlobStore is a testify mock of crawler.BlobStore. PutObject records the
// fully read payload as a string so expectations can match on content.
type MockBlobStore struct {
	mock.Mock
}

// PutObject is the mock implementation of PutObject.
func (m *MockBlobStore) PutObject(ctx context.Context, objectPath, contentType string, data io.Reader) (string, error) {
	payload, err := io.ReadAll(data)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	args := m.Called(ctx, objectPath, contentType, string(payload))
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

// GetObject is the mock implementation of GetObject.
func (m *MockBlobStore) GetObject(ctx context.Context, objectPath string) ([]byte, error) {
	args := m.Called(ctx, objectPath)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1) //nolint:wrapcheck
}
