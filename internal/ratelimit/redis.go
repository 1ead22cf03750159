package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/blog-auth/pkg/auth"
)

// attemptScript refuses the key while it is blocked or at its limit.
// Otherwise it increments the counter, starts the window on the first hit
// and sets the block key once the limit is reached, in one round trip.
var attemptScript = redis.NewScript(`
local blocked = redis.call('PTTL', KEYS[2])
if blocked > 0 then
	return {0, blocked}
end
local max = tonumber(ARGV[1])
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= max then
	return {0, redis.call('PTTL', KEYS[1])}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
local block = tonumber(ARGV[3])
if count >= max and block > 0 then
	redis.call('SET', KEYS[2], '1', 'PX', block)
end
return {1, 0}
`)

// releaseScript decrements a live counter and lifts the block once the
// counter is back under the limit.
var releaseScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count <= 0 then
	return 0
end
count = redis.call('DECR', KEYS[1])
if count < tonumber(ARGV[1]) then
	redis.call('DEL', KEYS[2])
end
return count
`)

// RedisTracker keeps attempt counters in Redis with native key expiry, so
// limits hold across restarts and across instances.
type RedisTracker struct {
	client redis.UniversalClient
	name   string
	policy Policy
}

// NewRedisTracker creates a tracker whose keys are prefixed with name.
func NewRedisTracker(client redis.UniversalClient, name string, policy Policy) *RedisTracker {
	return &RedisTracker{client: client, name: name, policy: policy}
}

// Attempt refuses key when it is at its limit and otherwise counts the
// attempt, in one script run.
func (t *RedisTracker) Attempt(ctx context.Context, key string) (auth.Decision, error) {
	res, err := attemptScript.Run(ctx, t.client, t.keys(key),
		t.policy.Max,
		t.policy.Window.Milliseconds(),
		t.policy.Block.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return auth.Decision{}, fmt.Errorf("redis tracker %s: %w", t.name, err)
	}
	if len(res) != 2 {
		return auth.Decision{}, fmt.Errorf("redis tracker %s: unexpected reply %v", t.name, res)
	}
	if res[0] == 1 {
		return allowed(), nil
	}
	return denied(time.Duration(res[1]) * time.Millisecond), nil
}

// Release takes back one counted attempt.
func (t *RedisTracker) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, t.client, t.keys(key), t.policy.Max).Err(); err != nil {
		return fmt.Errorf("redis tracker %s: %w", t.name, err)
	}
	return nil
}

// Clear forgets key.
func (t *RedisTracker) Clear(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, t.keys(key)...).Err(); err != nil {
		return fmt.Errorf("redis tracker %s: %w", t.name, err)
	}
	return nil
}

func (t *RedisTracker) keys(key string) []string {
	return []string{
		"attempts:" + t.name + ":" + key,
		"attempts:" + t.name + ":block:" + key,
	}
}
