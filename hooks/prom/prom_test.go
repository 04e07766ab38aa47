package promhook

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg, "app")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	h.Hit("users")
	h.Hit("users")
	h.Miss("users")
	h.Corrupt("v:users:1", "decode")
	h.BackendError("set", errors.New("x"))
	h.LockFallback("l:users:1", errors.New("x"))
	h.Degraded("lock")
	h.Stored("v:users:1", false, time.Minute)
	h.Stored("v:users:2", true, time.Second)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"hit", h.lookups.WithLabelValues("users", "hit"), 2},
		{"miss", h.lookups.WithLabelValues("users", "miss"), 1},
		{"corrupt", h.corrupt.WithLabelValues("decode"), 1},
		{"backend", h.backendErrs.WithLabelValues("set"), 1},
		{"fallback", h.lockFallback, 1},
		{"degraded", h.degraded.WithLabelValues("lock"), 1},
		{"stored value", h.stored.WithLabelValues("value"), 1},
		{"stored null", h.stored.WithLabelValues("null"), 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Fatalf("%s: got %v want %v", c.name, got, c.want)
		}
	}
	if n := testutil.CollectAndCount(h.storedTTL); n != 1 {
		t.Fatalf("ttl histogram series: %d", n)
	}
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg, "app"); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New(reg, "app"); err == nil {
		t.Fatal("expected AlreadyRegistered error on second New")
	}
}
