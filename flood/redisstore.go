package flood

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisFloodPrefix = "flood/"

// The window lives in a hash {start, count} in milliseconds. The script runs
// the same reset, count and fire steps as MemStore atomically.
var observeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local span = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
local count = tonumber(redis.call('HGET', KEYS[1], 'count')) or 0
if start == nil or now - start > span then
	start = now
	count = 0
end
count = count + 1

local flood = 0
if count >= limit and now - start <= span then
	flood = 1
	start = now
	count = 0
end

redis.call('HSET', KEYS[1], 'start', start, 'count', count)
redis.call('PEXPIRE', KEYS[1], ttl)
return flood
`)

// RedisStore shares windows between bot processes. Keys expire after twice the
// window so stale entries need no sweep.
type RedisStore struct {
	Client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		rdb.Close()
		return nil, err
	}
	return &RedisStore{Client: rdb}, nil
}

func (s *RedisStore) Observe(ctx context.Context, key string, now time.Time, limit int, span time.Duration) (Verdict, error) {
	ttl := 2 * span
	res, err := observeScript.Run(ctx, s.Client, []string{redisFloodPrefix + key},
		now.UnixMilli(), span.Milliseconds(), limit, ttl.Milliseconds()).Int()
	if err != nil {
		return Normal, err
	}
	if res == 1 {
		return Flood, nil
	}
	return Normal, nil
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}
