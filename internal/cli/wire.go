package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unkn0wn-root/guardcache"
	"github.com/unkn0wn-root/guardcache/codec"
	"github.com/unkn0wn-root/guardcache/fault"
	"github.com/unkn0wn-root/guardcache/lock"
	"github.com/unkn0wn-root/guardcache/provider"
	bcprov "github.com/unkn0wn-root/guardcache/provider/bigcache"
	mongoprov "github.com/unkn0wn-root/guardcache/provider/mongo"
	redisprov "github.com/unkn0wn-root/guardcache/provider/redis"
	rprov "github.com/unkn0wn-root/guardcache/provider/ristretto"
	scprov "github.com/unkn0wn-root/guardcache/provider/sturdyc"
	"github.com/unkn0wn-root/guardcache/tagstore"
)

// stack is the set of backends one command runs against.
type stack struct {
	provider provider.Provider
	locker   lock.Locker
	tags     tagstore.TagStore
	closers  []func(context.Context) error
}

func (s *stack) close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// buildStack connects the backends named in the config. Redis is dialled
// once and shared by the provider, the tag index and the lock.
func (c *CLI) buildStack(ctx context.Context, ns string) (*stack, error) {
	cfg := c.cfg
	st := &stack{}

	var rdb goredis.UniversalClient
	if cfg.Cache.Backend == "redis" || cfg.Lock.Backend == "redis" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st.closers = append(st.closers, func(context.Context) error { return rdb.Close() })
	}

	switch cfg.Cache.Backend {
	case "memory":
		p, err := rprov.New(rprov.Config{
			NumCounters: 100_000,
			MaxCost:     cfg.Cache.MaxCost,
			BufferItems: 64,
			Synchronous: true,
		})
		if err != nil {
			return nil, err
		}
		st.provider = p
	case "bigcache":
		p, err := bcprov.New(bcprov.Config{LifeWindow: cfg.Cache.DefaultTTL.Duration})
		if err != nil {
			return nil, err
		}
		st.provider = p
	case "sturdyc":
		p, err := scprov.New(scprov.Config{Capacity: 10_000, Shards: 8, TTL: cfg.Cache.DefaultTTL.Duration})
		if err != nil {
			return nil, err
		}
		st.provider = p
	case "redis":
		p, err := redisprov.New(redisprov.Config{Client: rdb, Prefix: cfg.Redis.Prefix})
		if err != nil {
			return nil, err
		}
		st.provider = p
		st.tags = tagstore.NewRedis(rdb, cfg.Redis.Prefix+ns)
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		p, err := mongoprov.New(ctx, mongoprov.Config{
			Collection:  client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection),
			EnsureIndex: true,
			CloseClient: true,
		})
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		st.provider = p
	case "none":
	}

	switch cfg.Lock.Backend {
	case "local":
		st.locker = lock.NewLocal()
	case "redis":
		l, err := lock.NewRedis(lock.RedisConfig{
			Client:     rdb,
			Lease:      cfg.Lock.Lease.Duration,
			RetryDelay: cfg.Lock.RetryDelay.Duration,
		})
		if err != nil {
			return nil, err
		}
		st.locker = l
	case "none":
	}
	return st, nil
}

// openCache builds a client for ns on st. Closing it closes the provider.
func openCache[V any](c *CLI, st *stack, ns string, cd codec.Codec[V]) (guardcache.Cache[V], error) {
	if c.cfg.Cache.MaxValueBytes > 0 {
		cd = codec.Limit[V]{Inner: cd, MaxDecode: c.cfg.Cache.MaxValueBytes}
	}
	return guardcache.New[V](guardcache.Options[V]{
		Namespace:           ns,
		Provider:            st.provider,
		Codec:               cd,
		Locker:              st.locker,
		TagStore:            st.tags,
		Logger:              c.logger(),
		Hooks:               c.hooks,
		DefaultTTL:          c.cfg.Cache.DefaultTTL.Duration,
		NullTTL:             c.cfg.Cache.NullTTL.Duration,
		LockTimeout:         c.cfg.Cache.LockTimeout.Duration,
		DisableLockFallback: c.cfg.Cache.DisableLockFallback,
	})
}

// jsonCodec picks the codec used for JSON documents fetched over REST.
func (c *CLI) jsonCodec() codec.Codec[json.RawMessage] {
	switch c.cfg.Cache.Codec {
	case "msgpack":
		return codec.Msgpack[json.RawMessage]{}
	case "cbor":
		return codec.MustCBOR[json.RawMessage](true)
	default:
		return codec.JSON[json.RawMessage]{}
	}
}

// withCache runs fn against a client for ns and tears everything down after.
func withCache[V any](ctx context.Context, c *CLI, ns string, cd codec.Codec[V], fn func(guardcache.Cache[V]) error) error {
	st, err := c.buildStack(ctx, ns)
	if err != nil {
		return fault.Upstream(0, err, "open cache backends: %v", err)
	}
	cache, err := openCache(c, st, ns, cd)
	if err != nil {
		_ = st.close(ctx)
		return err
	}
	runErr := fn(cache)
	closeErr := errors.Join(cache.Close(context.WithoutCancel(ctx)), st.close(context.WithoutCancel(ctx)))
	if closeErr != nil {
		c.Logger.Warn("close cache backends", "err", closeErr)
	}
	return runErr
}
