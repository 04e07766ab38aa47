// Package sloghook logs guardcache.Hooks events through log/slog.
package sloghook

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/guardcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitMissEvery uint64
	CorruptEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitMissCtr atomic.Uint64
	corruptCtr atomic.Uint64
}

var _ guardcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(ns string) {
	if h.l == nil || !sample(h.opts.HitMissEvery, &h.hitMissCtr) {
		return
	}
	h.l.Debug("guardcache.hit", "ns", ns)
}

func (h *Hooks) Miss(ns string) {
	if h.l == nil || !sample(h.opts.HitMissEvery, &h.hitMissCtr) {
		return
	}
	h.l.Debug("guardcache.miss", "ns", ns)
}

func (h *Hooks) Corrupt(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.CorruptEvery, &h.corruptCtr) {
		return
	}
	h.l.Warn("guardcache.corrupt",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) BackendError(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("guardcache.backend_error",
		"op", op,
		"err", err)
}

func (h *Hooks) LockFallback(lockKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("guardcache.lock_fallback",
		"key", h.redact(lockKey),
		"err", err)
}

func (h *Hooks) Degraded(backend string) {
	if h.l == nil {
		return
	}
	h.l.Error("guardcache.degraded", "backend", backend)
}

func (h *Hooks) Stored(storageKey string, null bool, ttl time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Debug("guardcache.stored",
		"key", h.redact(storageKey),
		"null", null,
		"ttl", ttl)
}
