// Package storage abstracts the physical medium behind the content store and
// event log. A Medium stores named byte blobs (collections, backups, history)
// and append-only line streams (view events, performance samples); it embeds
// no business logic.
package storage

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned when a named blob does not exist on the medium.
var ErrBlobNotFound = errors.New("blob not found")

// Medium reads and writes named byte blobs and append-only line streams.
//
// Blob keys and stream names are slash-separated relative paths, e.g.
// "blog-posts", "backups/blog-posts_2024-01-01T00-00-00Z", "views".
type Medium interface {
	// ReadBlob returns the contents of a blob, or ErrBlobNotFound.
	ReadBlob(ctx context.Context, key string) ([]byte, error)
	// WriteBlob atomically replaces the contents of a blob.
	WriteBlob(ctx context.Context, key string, data []byte) error
	// ListBlobs returns the keys of all blobs under the given prefix,
	// sorted ascending.
	ListBlobs(ctx context.Context, prefix string) ([]string, error)

	// AppendLine appends one record to a line stream.
	AppendLine(ctx context.Context, stream string, line []byte) error
	// ReadLines returns every record in a line stream, oldest first. A
	// missing stream yields no records and no error.
	ReadLines(ctx context.Context, stream string) ([][]byte, error)
	// ClearStream discards all records in a line stream.
	ClearStream(ctx context.Context, stream string) error

	// Ping verifies the medium is reachable and writable.
	Ping(ctx context.Context) error
	Close() error
}
