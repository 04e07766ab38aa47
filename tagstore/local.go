package tagstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Local keeps tag sets in-process. An optional cleanup loop drops keys whose
// association expired.
type Local struct {
	mu     sync.RWMutex
	tags   map[string]map[string]time.Time // tag -> key -> expiresAt (zero = none)
	now    func() time.Time
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ TagStore = (*Local)(nil)

// NewLocal starts a cleanup loop when cleanupInterval > 0.
func NewLocal(cleanupInterval time.Duration) *Local {
	s := &Local{
		tags: make(map[string]map[string]time.Time),
		now:  time.Now,
	}
	if cleanupInterval > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Add(_ context.Context, key string, tags []string, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mu.Lock()
	for _, t := range tags {
		keys, ok := s.tags[t]
		if !ok {
			keys = make(map[string]time.Time)
			s.tags[t] = keys
		}
		keys[key] = exp
	}
	s.mu.Unlock()
	return nil
}

func (s *Local) Keys(_ context.Context, tags []string) ([]string, error) {
	now := s.now()
	seen := make(map[string]struct{})
	s.mu.RLock()
	for _, t := range tags {
		for k, exp := range s.tags[t] {
			if !exp.IsZero() && !now.Before(exp) {
				continue
			}
			seen[k] = struct{}{}
		}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Local) Drop(_ context.Context, tags []string) error {
	s.mu.Lock()
	for _, t := range tags {
		delete(s.tags, t)
	}
	s.mu.Unlock()
	return nil
}

// Cleanup removes expired associations and tags left empty.
func (s *Local) Cleanup() {
	now := s.now()
	s.mu.Lock()
	for t, keys := range s.tags {
		for k, exp := range keys {
			if !exp.IsZero() && !now.Before(exp) {
				delete(keys, k)
			}
		}
		if len(keys) == 0 {
			delete(s.tags, t)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	if s.stopCh != nil {
		close(s.stopCh)
		s.ticker.Stop()
		s.wg.Wait()
		s.stopCh = nil
	}
	return nil
}
