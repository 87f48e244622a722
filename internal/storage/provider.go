// Package storage holds what the blob store backends share. The backends live
// in the local, memory and gcs subpackages.
package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by GetObject when nothing is stored at the path.
var ErrNotFound = errors.New("object not found")

// Content types used for written artifacts.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeJSON = "application/json"
)

// ObjectPath joins prefix and name into a slash-separated object key.
func ObjectPath(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// CheckPath rejects empty keys.
func CheckPath(objectPath string) error {
	if strings.TrimSpace(objectPath) == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}
