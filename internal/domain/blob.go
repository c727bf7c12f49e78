package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves aged ledger events out of the primary store into blob
// storage. Deletion from the primary store is a separate, explicit step
// executed only after the archive has been verified.
type Archiver interface {
	ArchiveEvents(ctx context.Context, before time.Time) (int64, error)
}
