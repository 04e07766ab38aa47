// Package bigcache adapts allegro/bigcache to provider.Provider.
//
// BigCache only knows a global LifeWindow, so each entry carries its own
// deadline in an 8-byte header that Get strips again:
//
//	expiresAt(unix nanos, i64 be; 0 = none) | value
package bigcache

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"
)

const expiryLen = 8

type Provider struct {
	c   *bc.BigCache
	now func() time.Time
}

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Provider, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, now: time.Now}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(b) < expiryLen {
		_ = p.c.Delete(key)
		return nil, false, nil
	}
	exp := int64(binary.BigEndian.Uint64(b[:expiryLen]))
	if exp != 0 && p.now().UnixNano() >= exp {
		_ = p.c.Delete(key)
		return nil, false, nil
	}
	return b[expiryLen:], true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp int64
	if ttl > 0 {
		exp = p.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, expiryLen+len(value))
	binary.BigEndian.PutUint64(buf[:expiryLen], uint64(exp))
	copy(buf[expiryLen:], value)
	if err := p.c.Set(key, buf); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
