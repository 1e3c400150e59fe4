package audit

import (
	"context"
	"time"
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job, page and report IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests of archived artifacts.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ResultSink receives completed jobs for archival or notification.
type ResultSink interface {
	Store(ctx context.Context, job Job) error
}

// ReportIndex records completed reports for later lookup.
type ReportIndex interface {
	IndexReport(ctx context.Context, entry ReportEntry) error
}
