package sturdyc

import (
	"context"
	"testing"
	"time"
)

func TestGetSetExpire(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{Capacity: 100, Shards: 2, TTL: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return now }

	in := []byte("abc")
	if _, err := p.Set(ctx, "k", in, 0, time.Second); err != nil {
		t.Fatal(err)
	}
	in[0] = 'X' // caller reuse must not leak into the store

	b, ok, _ := p.Get(ctx, "k")
	if !ok || string(b) != "abc" {
		t.Fatalf("Get = %q, %v", b, ok)
	}
	now = now.Add(time.Second)
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatal("expected expiry")
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{Capacity: 1}); err == nil {
		t.Fatal("expected error")
	}
}
