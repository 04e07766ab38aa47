package guardcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/guardcache/codec"
	"github.com/unkn0wn-root/guardcache/lock"
	pr "github.com/unkn0wn-root/guardcache/provider"
	"github.com/unkn0wn-root/guardcache/tagstore"
)

// SetCostFunc returns the cost passed to Provider.Set (used by Ristretto).
type SetCostFunc func(storageKey string, raw []byte) int64

// Fetcher loads a value from the source of truth. A nil result with a nil
// error is a negative result ("not found").
type Fetcher[V any] func(ctx context.Context) (*V, error)

// TTL computes the lifetime of an entry from the fetched value. It receives
// nil for a negative result. 0 means the configured default; a negative
// duration means "do not store".
type TTL[V any] func(v *V) time.Duration

// FixedTTL returns a TTL that ignores the value.
func FixedTTL[V any](d time.Duration) TTL[V] {
	return func(*V) time.Duration { return d }
}

// GetOrSetOptions controls one GetOrSet call. The zero value caches positive
// results for DefaultTTL without locking.
type GetOrSetOptions[V any] struct {
	// Validate rejects cached or fetched values that decode fine but are not
	// usable (wrong shape, stale schema). A rejected cached value is treated
	// as a miss; a rejected fetched value is returned to the caller as an error.
	Validate func(*V) error
	TTL      TTL[V]
	Tags     []string
	// LockKey serializes fetches of one logical resource across callers.
	// Empty disables locking.
	LockKey string
	// CacheNull stores negative results (NullTTL unless TTL says otherwise)
	// and serves them as hits.
	CacheNull   bool
	LockTimeout time.Duration // 0 => Options.LockTimeout
}

// Cache is a cache-aside client. Backend failures are logged and swallowed:
// a broken cache degrades to "always miss" and never fails the caller.
type Cache[V any] interface {
	// GetOrSet returns the cached value for key, or runs fetch, stores its
	// result and returns it. A nil *V with a nil error is a negative result.
	GetOrSet(ctx context.Context, key string, fetch Fetcher[V], opts GetOrSetOptions[V]) (*V, error)

	// Get returns (v, true) on hit. A cached negative result is (nil, true).
	Get(ctx context.Context, key string) (*V, bool)
	// Set stores v (nil stores a negative result). ttl 0 => default.
	Set(ctx context.Context, key string, v *V, ttl time.Duration, tags ...string)
	ClearByKey(ctx context.Context, key string)
	ClearByTags(ctx context.Context, tags ...string)

	// Degraded reports whether a backend was missing at construction.
	Degraded() bool
	Close(context.Context) error
}

// Options configure a client. Only Namespace is required. A nil Provider
// or Locker puts the client in degraded mode instead of failing.
type Options[V any] struct {
	Namespace string // logical namespace, e.g. "vat", "company"

	Provider pr.Provider
	Codec    c.Codec[V]        // nil => JSON
	Locker   lock.Locker       // nil => in-process coalescing only
	TagStore tagstore.TagStore // nil => tagstore.Local

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	DefaultTTL  time.Duration // 0 => 10m
	NullTTL     time.Duration // 0 => 1m
	LockTimeout time.Duration // 0 => 10s
	// TagCleanupInterval drives the default in-process tag store; 0 => 5m.
	TagCleanupInterval time.Duration

	// DisableLockFallback propagates lock acquisition failures instead of
	// running the fetch unsynchronized.
	DisableLockFallback bool
	ComputeSetCost      SetCostFunc // nil => len(raw)
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
