package store

import (
	"context"
	"time"
)

// Store is the authoritative holder of unconsumed commitment secrets,
// keyed by the hex commitment hash.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put inserts or replaces the secret for commitment. The entry becomes
	// unreachable once ttl has elapsed.
	Put(ctx context.Context, commitment string, secret []byte, ttl time.Duration) error
	// TakeAndInvalidate removes the entry for commitment and returns its secret
	// in one atomic step. Among concurrent callers for the same commitment at
	// most one receives ok == true. An unknown, consumed or expired commitment
	// yields ok == false with a nil error.
	TakeAndInvalidate(ctx context.Context, commitment string) (secret []byte, ok bool, err error)
	// PurgeExpired deletes expired entries and returns how many were removed.
	PurgeExpired(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}
