package guardcache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/guardcache/codec"
	"github.com/unkn0wn-root/guardcache/fault"
	"github.com/unkn0wn-root/guardcache/internal/util"
	"github.com/unkn0wn-root/guardcache/internal/wire"
	"github.com/unkn0wn-root/guardcache/lock"
	pr "github.com/unkn0wn-root/guardcache/provider"
	"github.com/unkn0wn-root/guardcache/tagstore"
)

const defaultTagCleanup = 5 * time.Minute

type cache[V any] struct {
	ns             string
	provider       pr.Provider
	codec          c.Codec[V]
	locker         lock.Locker
	tags           tagstore.TagStore
	ownTags        bool
	log            Logger
	hooks          Hooks
	defaultTTL     time.Duration
	nullTTL        time.Duration
	lockTimeout    time.Duration
	lockFallback   bool
	computeSetCost SetCostFunc

	cacheDegraded bool
	lockDegraded  bool
	sf            singleflight.Group // coalesces fetches when no Locker is configured
}

// outcome is the result of a cache check.
type outcome[V any] struct {
	v   *V
	hit bool
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("guardcache: namespace is required")
	}
	if opts.DefaultTTL < 0 || opts.NullTTL < 0 || opts.LockTimeout < 0 {
		return nil, fmt.Errorf("guardcache: durations must not be negative")
	}

	cc := &cache[V]{
		ns:           opts.Namespace,
		provider:     opts.Provider,
		codec:        opts.Codec,
		locker:       opts.Locker,
		tags:         opts.TagStore,
		lockFallback: !opts.DisableLockFallback,
	}

	// defaults
	cc.log = nsLogger{next: coalesce[Logger](opts.Logger, NopLogger{}), ns: opts.Namespace}
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	cc.defaultTTL = coalesce(opts.DefaultTTL, defaultTTL)
	cc.nullTTL = coalesce(opts.NullTTL, defaultNullTTL)
	cc.lockTimeout = coalesce(opts.LockTimeout, defaultLockTimeout)
	if cc.codec == nil {
		cc.codec = c.JSON[V]{}
	}
	if opts.ComputeSetCost != nil {
		cc.computeSetCost = opts.ComputeSetCost
	} else {
		cc.computeSetCost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}

	if cc.provider == nil {
		cc.cacheDegraded = true
		cc.provider = pr.Null{}
		cc.log.Warn("cache backend unavailable; every read misses and writes are dropped",
			Fields{"namespace": cc.ns})
		cc.hooks.Degraded("cache")
	}
	if cc.locker == nil {
		cc.lockDegraded = true
		cc.log.Warn("lock backend unavailable; fetches are coalesced in this process only",
			Fields{"namespace": cc.ns})
		cc.hooks.Degraded("lock")
	}
	if cc.tags == nil {
		cc.tags = tagstore.NewLocal(coalesce(opts.TagCleanupInterval, defaultTagCleanup))
		cc.ownTags = true
	}
	return cc, nil
}

func (cc *cache[V]) Degraded() bool { return cc.cacheDegraded || cc.lockDegraded }

func (cc *cache[V]) Close(ctx context.Context) error {
	var errs []error
	if cc.ownTags {
		errs = append(errs, cc.tags.Close(ctx))
	}
	errs = append(errs, cc.provider.Close(ctx))
	return errors.Join(errs...)
}

func (cc *cache[V]) GetOrSet(ctx context.Context, key string, fetch Fetcher[V], opts GetOrSetOptions[V]) (*V, error) {
	if fetch == nil {
		return nil, fault.Validation("guardcache: nil fetcher for %q", key)
	}
	if o := cc.check(ctx, key, opts); o.hit {
		cc.hooks.Hit(cc.ns)
		return o.v, nil
	}
	cc.hooks.Miss(cc.ns)

	if opts.LockKey == "" {
		return cc.fetchAndStore(ctx, key, fetch, opts)
	}
	if cc.lockDegraded {
		return cc.coalesced(ctx, key, fetch, opts)
	}

	var (
		out     *V
		started atomic.Bool
	)
	section := func(ctx context.Context) error {
		started.Store(true)
		v, err := cc.recheckAndFetch(ctx, key, fetch, opts)
		out = v
		return err
	}

	lockKey := cc.lockKey(opts.LockKey)
	err := cc.locker.Execute(ctx, lockKey, coalesce(opts.LockTimeout, cc.lockTimeout), section)
	if err == nil {
		return out, nil
	}

	var acqErr *lock.AcquireError
	if !errors.As(err, &acqErr) || started.Load() {
		var relErr *lock.ReleaseError
		if errors.As(err, &relErr) {
			// the section finished and stored its result; the lease will lapse
			cc.log.Warn("lock release failed", Fields{"lock_key": lockKey, "err": err})
			cc.hooks.BackendError("unlock", err)
			return out, nil
		}
		return nil, err
	}
	if !cc.lockFallback || ctx.Err() != nil {
		return nil, err
	}

	cc.log.Warn("lock unavailable; fetching without cross-process coordination",
		Fields{"lock_key": lockKey, "err": acqErr.Err})
	cc.hooks.LockFallback(lockKey, acqErr.Err)
	return cc.recheckAndFetch(ctx, key, fetch, opts)
}

// coalesced shares one in-flight fetch per (lock key, cache key) pair among
// goroutines of this process. Keys that share a lock key still fetch their
// own values.
func (cc *cache[V]) coalesced(ctx context.Context, key string, fetch Fetcher[V], opts GetOrSetOptions[V]) (*V, error) {
	ch := cc.sf.DoChan(cc.lockKey(opts.LockKey)+"\x00"+cc.valueKey(key), func() (any, error) {
		return cc.recheckAndFetch(context.WithoutCancel(ctx), key, fetch, opts)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		v, _ := r.Val.(*V)
		return v, nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

func (cc *cache[V]) recheckAndFetch(ctx context.Context, key string, fetch Fetcher[V], opts GetOrSetOptions[V]) (*V, error) {
	if o := cc.check(ctx, key, opts); o.hit {
		return o.v, nil
	}
	return cc.fetchAndStore(ctx, key, fetch, opts)
}

func (cc *cache[V]) fetchAndStore(ctx context.Context, key string, fetch Fetcher[V], opts GetOrSetOptions[V]) (*V, error) {
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if v != nil && opts.Validate != nil {
		if verr := opts.Validate(v); verr != nil {
			return nil, fault.Upstream(0, verr, "guardcache: fetched value for %q failed validation: %v", key, verr)
		}
	}
	if v == nil && !opts.CacheNull {
		return nil, nil
	}

	var ttl time.Duration
	if opts.TTL != nil {
		ttl = opts.TTL(v)
	}
	cc.store(ctx, key, v, ttl, opts.Tags)
	return v, nil
}

// check reads key and applies the caller's acceptance rules. Any failure is
// a miss.
func (cc *cache[V]) check(ctx context.Context, key string, opts GetOrSetOptions[V]) outcome[V] {
	v, null, ok := cc.read(ctx, key)
	if !ok {
		return outcome[V]{}
	}
	if null {
		return outcome[V]{hit: opts.CacheNull}
	}
	if opts.Validate != nil {
		if err := opts.Validate(v); err != nil {
			sk := cc.valueKey(key)
			cc.log.Warn("cached value rejected by validator; refetching", Fields{"key": sk, "err": err})
			cc.hooks.Corrupt(sk, "validate")
			return outcome[V]{}
		}
	}
	return outcome[V]{v: v, hit: true}
}

// read returns (value, null, ok). Backend errors and payloads the codec
// rejects are logged and reported as a miss.
func (cc *cache[V]) read(ctx context.Context, key string) (*V, bool, bool) {
	sk := cc.valueKey(key)
	raw, ok, err := cc.provider.Get(ctx, sk)
	if err != nil {
		cc.log.Warn("cache get failed", Fields{"key": sk, "err": err})
		cc.hooks.BackendError("get", err)
		return nil, false, false
	}
	if !ok {
		return nil, false, false
	}

	env, err := wire.Decode(raw)
	if err != nil {
		// not an exact envelope, including look-alikes that carry the
		// marker: hand the bytes to the codec unchanged
		cc.log.Debug("entry is not an envelope; decoding raw bytes", Fields{"key": sk, "err": err})
		env = wire.Envelope{Payload: raw}
	}
	if env.Null {
		return nil, true, true
	}

	v, err := cc.codec.Decode(env.Payload)
	if err != nil {
		cc.log.Warn("cache entry does not decode", Fields{"key": sk, "codec": cc.codec.Name(), "err": err})
		cc.hooks.Corrupt(sk, "decode")
		return nil, false, false
	}
	return &v, false, true
}

// store writes v (nil = negative result) and records its tags. ttl 0 picks
// the default for the outcome; a negative ttl skips the write.
func (cc *cache[V]) store(ctx context.Context, key string, v *V, ttl time.Duration, tags []string) {
	if ttl < 0 || cc.cacheDegraded {
		return
	}
	if ttl == 0 {
		ttl = cc.defaultTTL
		if v == nil {
			ttl = cc.nullTTL
		}
	}

	sk := cc.valueKey(key)
	var raw []byte
	if v == nil {
		raw = wire.EncodeNull()
	} else {
		payload, err := cc.codec.Encode(*v)
		if err != nil {
			cc.log.Warn("cache encode failed", Fields{"key": sk, "codec": cc.codec.Name(), "err": err})
			return
		}
		raw = wire.EncodeValue(payload)
	}

	ok, err := cc.provider.Set(ctx, sk, raw, cc.computeSetCost(sk, raw), ttl)
	if err != nil {
		cc.log.Warn("cache set failed", Fields{"key": sk, "err": err})
		cc.hooks.BackendError("set", err)
		return
	}
	if !ok {
		cc.log.Debug("cache set rejected by provider (pressure)", Fields{"key": sk})
		return
	}
	cc.hooks.Stored(sk, v == nil, ttl)

	if tags = util.Dedupe(tags); len(tags) > 0 {
		if err := cc.tags.Add(ctx, sk, tags, ttl); err != nil {
			cc.log.Warn("tagging failed", Fields{"key": sk, "tags": tags, "err": err})
			cc.hooks.BackendError("tag", err)
		}
	}
}

func (cc *cache[V]) Get(ctx context.Context, key string) (*V, bool) {
	v, null, ok := cc.read(ctx, key)
	if !ok {
		return nil, false
	}
	if null {
		return nil, true
	}
	return v, true
}

func (cc *cache[V]) Set(ctx context.Context, key string, v *V, ttl time.Duration, tags ...string) {
	cc.store(ctx, key, v, ttl, tags)
}

func (cc *cache[V]) ClearByKey(ctx context.Context, key string) {
	sk := cc.valueKey(key)
	if err := cc.provider.Del(ctx, sk); err != nil {
		cc.log.Warn("cache delete failed", Fields{"key": sk, "err": err})
		cc.hooks.BackendError("del", err)
	}
}

func (cc *cache[V]) ClearByTags(ctx context.Context, tags ...string) {
	tags = util.Dedupe(tags)
	if len(tags) == 0 || cc.cacheDegraded {
		return
	}
	keys, err := cc.tags.Keys(ctx, tags)
	if err != nil {
		cc.log.Warn("tag lookup failed", Fields{"tags": tags, "err": err})
		cc.hooks.BackendError("clear_tags", err)
		return
	}
	for _, sk := range keys {
		if err := cc.provider.Del(ctx, sk); err != nil {
			cc.log.Warn("cache delete failed", Fields{"key": sk, "err": err})
			cc.hooks.BackendError("del", err)
		}
	}
	if err := cc.tags.Drop(ctx, tags); err != nil {
		cc.log.Warn("tag drop failed", Fields{"tags": tags, "err": err})
		cc.hooks.BackendError("clear_tags", err)
	}
	cc.log.Debug("cleared by tags", Fields{"tags": tags, "keys": len(keys)})
}
