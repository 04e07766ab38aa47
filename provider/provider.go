// Package provider defines the byte store behind a guardcache client.
//
// Implementations must be byte-for-byte transparent: Get returns exactly the
// []byte previously passed to Set for the same key. Any internal framing
// (expiry headers, compression) must be fully reversed before Get returns.
//
// The keyspaces "v:<ns>:" and "l:<ns>:" are owned by guardcache. Other writers
// sharing the store may still put raw bytes under those keys; the client
// decodes them as plain codec payloads instead of failing.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	// IO or remote failures return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. cost may be ignored.
	// ok=false means the store dropped the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key. Missing keys are not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}

// Null is the provider used in degraded mode: every Get misses, every Set is
// accepted and forgotten.
type Null struct{}

var _ Provider = Null{}

func (Null) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Null) Set(context.Context, string, []byte, int64, time.Duration) (bool, error) {
	return true, nil
}

func (Null) Del(context.Context, string) error { return nil }
func (Null) Close(context.Context) error       { return nil }
