package tagstore

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// addScript adds ARGV[1] to the set and pushes its expiry out to ARGV[2] ms.
// An existing longer TTL is kept; ttl <= 0 makes the set persistent.
var addScript = redis.NewScript(`
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SADD", KEYS[1], ARGV[1])
local ttl = tonumber(ARGV[2])
if ttl <= 0 then
	redis.call("PERSIST", KEYS[1])
	return 1
end
local cur = redis.call("PTTL", KEYS[1])
if existed == 0 or (cur >= 0 and cur < ttl) then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`)

// Redis shares tag sets across processes as one Redis set per tag.
// A set's TTL is pushed out to the longest entry TTL added to it, so the
// index never expires before the entries it points at.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
}

var _ TagStore = (*Redis)(nil)

// NewRedis stores sets under "t:<namespace>:<tag>". The client is not owned.
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, ns: namespace}
}

func (s *Redis) key(tag string) string { return "t:" + s.ns + ":" + tag }

func (s *Redis) Add(ctx context.Context, key string, tags []string, ttl time.Duration) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, t := range tags {
			addScript.Eval(ctx, p, []string{s.key(t)}, key, ttl.Milliseconds())
		}
		return nil
	})
	return err
}

func (s *Redis) Keys(ctx context.Context, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = s.key(t)
	}
	out, err := s.rdb.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (s *Redis) Drop(ctx context.Context, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = s.key(t)
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// Close is a no-op; the client belongs to the caller.
func (s *Redis) Close(context.Context) error { return nil }
