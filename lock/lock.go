// Package lock provides the mutual-exclusion backends the cache client uses
// to serialize fetches of one logical resource.
//
// Execute owns the whole lifecycle: acquire, run fn, release. Callers never
// unlock by hand. An *AcquireError is only ever returned before fn started.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotAcquired is the cause of an *AcquireError when the wait timed out.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker runs fn while holding key. timeout bounds the wait for the lock,
// not the run time of fn.
type Locker interface {
	Execute(ctx context.Context, key string, timeout time.Duration, fn func(ctx context.Context) error) error
}

// AcquireError means fn was never invoked.
type AcquireError struct {
	Key string
	Err error
}

func (e *AcquireError) Error() string { return fmt.Sprintf("lock %q: acquire: %v", e.Key, e.Err) }
func (e *AcquireError) Unwrap() error { return e.Err }

// ReleaseError means fn completed successfully but the lock could not be
// released; it will lapse when its lease expires.
type ReleaseError struct {
	Key string
	Err error
}

func (e *ReleaseError) Error() string { return fmt.Sprintf("lock %q: release: %v", e.Key, e.Err) }
func (e *ReleaseError) Unwrap() error { return e.Err }

// IsAcquire reports whether err says the lock was never obtained.
func IsAcquire(err error) bool {
	var ae *AcquireError
	return errors.As(err, &ae)
}
