package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no blob exists at the path.
var ErrNotFound = errors.New("blob not found")

// Storage defines the interface for gallery blob storage. Paths are
// slash-separated keys such as "vehicles/<id>/<file>".
type Storage interface {
	// Put writes data at path, replacing any existing blob.
	Put(ctx context.Context, path string, data []byte) error
	// Get returns the blob stored at path.
	Get(ctx context.Context, path string) ([]byte, error)
	// Delete removes the blob at path. Deleting a missing blob is not an error.
	Delete(ctx context.Context, path string) error
	// Exists checks whether a blob exists at path.
	Exists(ctx context.Context, path string) (bool, error)
	// List returns the paths of all blobs under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
