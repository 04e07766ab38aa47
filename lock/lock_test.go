package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLocker(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l, err := NewRedis(RedisConfig{Client: rdb, Lease: time.Minute, RetryDelay: 5 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	return l, mr
}

func lockers(t *testing.T) map[string]Locker {
	r, _ := newRedisLocker(t)
	return map[string]Locker{"local": NewLocal(), "redis": r}
}

func TestMutualExclusion(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := l.Execute(context.Background(), "company:1", 5*time.Second, func(context.Context) error {
						n := atomic.AddInt32(&inside, 1)
						for {
							m := atomic.LoadInt32(&maxInside)
							if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
								break
							}
						}
						time.Sleep(2 * time.Millisecond)
						atomic.AddInt32(&inside, -1)
						return nil
					})
					if err != nil {
						t.Errorf("Execute: %v", err)
					}
				}()
			}
			wg.Wait()
			if maxInside != 1 {
				t.Fatalf("max concurrent holders = %d, want 1", maxInside)
			}
		})
	}
}

func TestAcquireTimeout(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			held := make(chan struct{})
			done := make(chan struct{})
			go func() {
				_ = l.Execute(context.Background(), "k", time.Second, func(context.Context) error {
					close(held)
					<-done
					return nil
				})
			}()
			<-held
			defer close(done)

			ran := false
			err := l.Execute(context.Background(), "k", 30*time.Millisecond, func(context.Context) error {
				ran = true
				return nil
			})
			if ran {
				t.Fatal("critical section ran without the lock")
			}
			if !IsAcquire(err) || !errors.Is(err, ErrNotAcquired) {
				t.Fatalf("err = %v, want AcquireError(ErrNotAcquired)", err)
			}
		})
	}
}

func TestSectionErrorPropagatesAndReleases(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			boom := errors.New("boom")
			err := l.Execute(context.Background(), "k", time.Second, func(context.Context) error { return boom })
			if !errors.Is(err, boom) || IsAcquire(err) {
				t.Fatalf("err = %v", err)
			}
			if err := l.Execute(context.Background(), "k", 50*time.Millisecond, func(context.Context) error { return nil }); err != nil {
				t.Fatalf("lock not released after failure: %v", err)
			}
		})
	}
}

func TestRedisReleaseKeepsForeignToken(t *testing.T) {
	l, mr := newRedisLocker(t)
	err := l.Execute(context.Background(), "k", time.Second, func(context.Context) error {
		// lease lapsed and someone else took the key
		mr.Set("k", "other-token")
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got, _ := mr.Get("k"); got != "other-token" {
		t.Fatalf("release removed a lock it did not own, key=%q", got)
	}
}

func TestRedisBackendDownIsAcquireError(t *testing.T) {
	l, mr := newRedisLocker(t)
	mr.Close()
	err := l.Execute(context.Background(), "k", 100*time.Millisecond, func(context.Context) error {
		t.Fatal("must not run")
		return nil
	})
	if !IsAcquire(err) {
		t.Fatalf("err = %v, want AcquireError", err)
	}
}
