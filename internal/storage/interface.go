package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the bucket API the mirror needs.
type ObjectStorage interface {
	// Put stores size bytes from reader under key.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Get opens the object at key. Missing keys yield ErrObjectNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// URL returns where the object can be reached, for logging.
	URL(key string) string
}

// BucketEnsurer is implemented by backends that can create their bucket on startup.
type BucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

// Key prefixes used by the mirror.
const (
	PrefixOriginals = "originals"
	PrefixMarkdowns = "markdowns"
)
