// Package asynchook moves guardcache.Hooks calls off the request path.
//
// usage:
//
//	raw := sloghook.New(slog.Default(), sloghook.Options{HitMissEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := guardcache.New[User](guardcache.Options[User]{
//	    Namespace: "app:prod:user",
//	    Provider:  provider,
//	    Codec:     codec.JSON[User]{},
//	    Hooks:     hooks,
//	})
//
// Events are dropped, not queued, when the buffer is full or after Close.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/guardcache"
)

type Hooks struct {
	inner guardcache.Hooks
	q     chan func()
	wg    sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ guardcache.Hooks = (*Hooks)(nil)

func New(inner guardcache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = guardcache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers.
func (h *Hooks) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.q)
	h.mu.Unlock()
	h.wg.Wait()
}

// Dropped is the number of events discarded so far.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(ns string)       { h.try(func() { h.inner.Hit(ns) }) }
func (h *Hooks) Miss(ns string)      { h.try(func() { h.inner.Miss(ns) }) }
func (h *Hooks) Corrupt(k, r string) { h.try(func() { h.inner.Corrupt(k, r) }) }
func (h *Hooks) BackendError(op string, err error) {
	h.try(func() { h.inner.BackendError(op, err) })
}
func (h *Hooks) LockFallback(k string, err error) {
	h.try(func() { h.inner.LockFallback(k, err) })
}
func (h *Hooks) Degraded(b string) { h.try(func() { h.inner.Degraded(b) }) }
func (h *Hooks) Stored(k string, null bool, ttl time.Duration) {
	h.try(func() { h.inner.Stored(k, null, ttl) })
}
