package lock

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process keyed mutex. It coordinates goroutines only, never
// processes.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{} // capacity 1; holding a token = holding the lock
	refs int
}

var _ Locker = (*Local)(nil)

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Execute(ctx context.Context, key string, timeout time.Duration, fn func(context.Context) error) error {
	s := l.ref(key)
	defer l.unref(key, s)

	wait := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case s.ch <- struct{}{}:
	case <-wait.Done():
		if ctx.Err() != nil {
			return &AcquireError{Key: key, Err: context.Cause(ctx)}
		}
		return &AcquireError{Key: key, Err: ErrNotAcquired}
	}
	defer func() { <-s.ch }()

	return fn(ctx)
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
