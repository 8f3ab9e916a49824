package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned for keys with no stored object. Callers use
// it to distinguish a vanished dataset file from a backend failure.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored dataset file.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

// ObjectStore persists uploaded dataset files so sessions can be rehydrated
// after eviction or restart. Objects are written once at upload time and
// never modified afterwards.
type ObjectStore interface {
	// Put stores the object under key, replacing any previous content.
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	// Get opens the object for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}
