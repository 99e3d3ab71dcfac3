// Package cache provides the content-addressable persistent store for
// memoized call results, keyed by fingerprint digest.
package cache

import (
	"context"
	"time"
)

// Entry is one cached result. Entries are immutable once written: the
// digest is derived from the producing callable's logic and arguments, so
// rewriting the same digest always carries a content-equivalent payload.
type Entry struct {
	// Digest is the fingerprint key addressing this entry.
	Digest string

	// Payload is the canonical codec encoding of the cached value.
	Payload []byte

	// CreatedAt records when the entry was first persisted.
	CreatedAt time.Time
}

// Store is the interface for persisting memoized results.
// Implementations (filesystem, memory, SQL, Redis) must be safe for
// concurrent use. Concurrent writers to the same digest are safe because
// identical digests imply identical payloads.
type Store interface {
	// Get retrieves the entry for a digest.
	// Returns (nil, nil) on a miss. Callers treat any error as a miss as
	// well: a corrupted or unreadable entry triggers recomputation and
	// overwrite, never a pipeline failure.
	Get(ctx context.Context, digest string) (*Entry, error)

	// Put persists an entry, overwriting any existing one for the digest.
	Put(ctx context.Context, entry *Entry) error

	// Clear removes all entries. A concurrent reader observes either a
	// complete pre-clear entry or a miss, never a truncated payload.
	Clear(ctx context.Context) error
}
