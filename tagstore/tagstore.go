// Package tagstore indexes storage keys by tag so a whole group of entries
// can be cleared at once.
package tagstore

import (
	"context"
	"time"
)

// TagStore maps tags to the storage keys written under them.
// Use Local (default) for a single process or Redis when several processes
// share the cache and must see each other's tags.
type TagStore interface {
	// Add records key under every tag. ttl bounds how long the association
	// is kept; it should match the entry's own TTL. ttl <= 0 keeps it until Drop.
	Add(ctx context.Context, key string, tags []string, ttl time.Duration) error
	// Keys returns the union of keys recorded under tags, deduplicated.
	Keys(ctx context.Context, tags []string) ([]string, error)
	// Drop forgets tags entirely.
	Drop(ctx context.Context, tags []string) error
	Close(context.Context) error
}
