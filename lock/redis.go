package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLease      = 30 * time.Second
	defaultRetryDelay = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lease lapsed cannot free someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a single-instance Redis lock (SET NX PX + token-checked release).
// The lease is not extended while fn runs; keep fn shorter than Lease.
type Redis struct {
	rdb        redis.UniversalClient
	lease      time.Duration
	retryDelay time.Duration
}

var _ Locker = (*Redis)(nil)

type RedisConfig struct {
	Client     redis.UniversalClient
	Lease      time.Duration // default 30s
	RetryDelay time.Duration // poll interval while waiting; default 50ms
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, errors.New("lock: nil redis client")
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaultLease
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Redis{rdb: cfg.Client, lease: cfg.Lease, retryDelay: cfg.RetryDelay}, nil
}

func (r *Redis) Execute(ctx context.Context, key string, timeout time.Duration, fn func(context.Context) error) error {
	token := uuid.NewString()
	if err := r.acquire(ctx, key, token, timeout); err != nil {
		return &AcquireError{Key: key, Err: err}
	}

	runErr := fn(ctx)

	// release even when the caller is gone
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	relErr := releaseScript.Run(relCtx, r.rdb, []string{key}, token).Err()

	if runErr != nil {
		return runErr
	}
	if relErr != nil {
		return &ReleaseError{Key: key, Err: relErr}
	}
	return nil
}

func (r *Redis) acquire(ctx context.Context, key, token string, timeout time.Duration) error {
	wait := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(r.retryDelay)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(wait, key, token, r.lease).Result()
		if err != nil {
			if ctx.Err() == nil && wait.Err() != nil {
				return ErrNotAcquired
			}
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ticker.C:
		case <-wait.Done():
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			return ErrNotAcquired
		}
	}
}
