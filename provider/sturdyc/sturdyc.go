// Package sturdyc adapts a viccon/sturdyc client to provider.Provider.
//
// sturdyc applies one TTL to the whole client, so entries keep their own
// deadline next to the bytes and Get treats anything past it as a miss.
package sturdyc

import (
	"context"
	"errors"
	"time"

	sc "github.com/viccon/sturdyc"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero = client TTL only
}

type Provider struct {
	c   *sc.Client[entry]
	now func() time.Time
}

type Config struct {
	Capacity int
	Shards   int
	// TTL is the client-wide upper bound. Per-entry TTLs above it are cut short.
	TTL time.Duration
	// EvictionPercentage is evicted from a full shard; 10 if zero.
	EvictionPercentage int
	EvictionInterval   time.Duration
}

func New(cfg Config) (*Provider, error) {
	if cfg.Capacity <= 0 || cfg.Shards <= 0 || cfg.TTL <= 0 {
		return nil, errors.New("sturdyc: capacity, shards and ttl must be positive")
	}
	if cfg.EvictionPercentage == 0 {
		cfg.EvictionPercentage = 10
	}
	var opts []sc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sc.WithEvictionInterval(cfg.EvictionInterval))
	}
	c := sc.New[entry](cfg.Capacity, cfg.Shards, cfg.TTL, cfg.EvictionPercentage, opts...)
	return &Provider{c: c, now: time.Now}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !p.now().Before(e.expiresAt) {
		p.c.Delete(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = p.now().Add(ttl)
	}
	p.c.Set(key, e)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Delete(key)
	return nil
}

func (p *Provider) Close(context.Context) error { return nil }
