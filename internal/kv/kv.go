// Package kv defines the key/value + list store the job queue is built on.
//
// Every operation is atomic for a single key. No operation spans keys.
// Implementations wrap backend failures with audit.ErrStoreUnavailable so
// callers can treat them as retryable.
package kv

import "context"

// Store is the abstract durable key/value and list primitive.
type Store interface {
	// Get returns the value for key; found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)
	PushEnd(ctx context.Context, key string, items ...string) (int64, error)
	PushStart(ctx context.Context, key string, items ...string) (int64, error)
	// PopStart removes up to count items from the head. An absent or empty
	// list yields an empty slice and no error.
	PopStart(ctx context.Context, key string, count int) ([]string, error)
	PopEnd(ctx context.Context, key string, count int) ([]string, error)
	// Range returns items between start and end inclusive. Negative indices
	// count from the tail, -1 being the last item.
	Range(ctx context.Context, key string, start, end int64) ([]string, error)
	Length(ctx context.Context, key string) (int64, error)
	// ScanKeys returns every key matching a glob pattern such as "job:*".
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	Close() error
}
