package guardcache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// Hit and Miss report the outcome of the first cache check of GetOrSet.
	Hit(namespace string)
	Miss(namespace string)

	// A cached entry could not be decoded or was rejected by the caller's validator.
	// reason ∈ {"decode", "validate"}
	Corrupt(storageKey, reason string)

	// A cache, tag or lock backend call failed and was swallowed.
	// op ∈ {"get", "set", "del", "tag", "clear_tags", "unlock"}
	BackendError(op string, err error)

	// Lock acquisition failed before the critical section started and
	// the fetch ran unsynchronized.
	LockFallback(lockKey string, err error)

	// A backend was missing at construction time.
	// backend ∈ {"cache", "lock"}
	Degraded(backend string)

	// A value (or a negative result) was written.
	Stored(storageKey string, null bool, ttl time.Duration)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string)                         {}
func (NopHooks) Miss(string)                        {}
func (NopHooks) Corrupt(string, string)             {}
func (NopHooks) BackendError(string, error)         {}
func (NopHooks) LockFallback(string, error)         {}
func (NopHooks) Degraded(string)                    {}
func (NopHooks) Stored(string, bool, time.Duration) {}
