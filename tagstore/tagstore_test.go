package tagstore

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func stores(t *testing.T) (map[string]TagStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	local := NewLocal(0)
	t.Cleanup(func() { _ = local.Close(context.Background()) })
	return map[string]TagStore{"local": local, "redis": NewRedis(rdb, "reg")}, mr
}

func TestAddKeysDrop(t *testing.T) {
	ctx := context.Background()
	all, _ := stores(t)
	for name, s := range all {
		t.Run(name, func(t *testing.T) {
			if err := s.Add(ctx, "v:reg:a", []string{"company", "de"}, time.Minute); err != nil {
				t.Fatal(err)
			}
			if err := s.Add(ctx, "v:reg:b", []string{"company"}, 0); err != nil {
				t.Fatal(err)
			}

			got, err := s.Keys(ctx, []string{"company", "de"})
			if err != nil {
				t.Fatal(err)
			}
			if want := []string{"v:reg:a", "v:reg:b"}; !reflect.DeepEqual(got, want) {
				t.Fatalf("Keys = %v, want %v", got, want)
			}

			if err := s.Drop(ctx, []string{"company"}); err != nil {
				t.Fatal(err)
			}
			got, _ = s.Keys(ctx, []string{"company", "de"})
			if want := []string{"v:reg:a"}; !reflect.DeepEqual(got, want) {
				t.Fatalf("after Drop Keys = %v, want %v", got, want)
			}
		})
	}
}

func TestLocalExpiryAndCleanup(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	_ = s.Add(ctx, "short", []string{"x"}, time.Second)
	_ = s.Add(ctx, "long", []string{"x"}, time.Hour)

	now = now.Add(2 * time.Second)
	got, _ := s.Keys(ctx, []string{"x"})
	if !reflect.DeepEqual(got, []string{"long"}) {
		t.Fatalf("Keys = %v", got)
	}
	s.Cleanup()
	s.mu.RLock()
	n := len(s.tags["x"])
	s.mu.RUnlock()
	if n != 1 {
		t.Fatalf("cleanup left %d keys, want 1", n)
	}
}

func TestRedisKeepsLongestTTL(t *testing.T) {
	ctx := context.Background()
	all, mr := stores(t)
	s := all["redis"]

	_ = s.Add(ctx, "a", []string{"t"}, time.Hour)
	_ = s.Add(ctx, "b", []string{"t"}, time.Minute)
	if ttl := mr.TTL("t:reg:t"); ttl != time.Hour {
		t.Fatalf("set ttl = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	got, err := s.Keys(ctx, []string{"t"})
	if err != nil || len(got) != 0 {
		t.Fatalf("expired set still returned %v (err=%v)", got, err)
	}
}
