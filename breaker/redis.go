// Copyright © 2025 Admin Road Engineering.

package breaker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "elevation:breaker:"

// Transitions run as Lua scripts so that concurrent workers sharing
// one redis see every update atomically.
var (
	allowScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state or state == 'closed' or state == 'half_open' then
	return 1
end
local openUntil = tonumber(redis.call('HGET', KEYS[1], 'open_until_ms') or '0')
if tonumber(ARGV[1]) >= openUntil then
	redis.call('HSET', KEYS[1], 'state', 'half_open')
	return 1
end
return 0`)

	failureScript = redis.NewScript(`
local failures = redis.call('HINCRBY', KEYS[1], 'failures', 1)
redis.call('HSET', KEYS[1], 'last_failure_ms', ARGV[1])
local state = redis.call('HGET', KEYS[1], 'state')
if state == 'half_open' or failures >= tonumber(ARGV[2]) then
	redis.call('HSET', KEYS[1], 'state', 'open')
	redis.call('HSET', KEYS[1], 'open_until_ms', tonumber(ARGV[1]) + tonumber(ARGV[3]))
end
return failures`)

	successScript = redis.NewScript(`
redis.call('HSET', KEYS[1], 'state', 'closed')
redis.call('HSET', KEYS[1], 'failures', 0)
redis.call('HDEL', KEYS[1], 'open_until_ms')
return 1`)
)

// RedisStore keeps circuit state in a shared redis so that every
// worker process sees the same view. Breaker state is ephemeral: a
// flushed redis simply means all circuits start closed again.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redis and verifies the connection with a
// ping; an unreachable store is reported immediately so production
// startup can fail fast.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("breaker: pinging redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Kind implements Store.
func (s *RedisStore) Kind() string { return "redis" }

// Close releases the redis client.
func (s *RedisStore) Close() error { return s.client.Close() }

func key(id string) string { return keyPrefix + id }

// Allow implements Store.
func (s *RedisStore) Allow(ctx context.Context, id string, now time.Time) (bool, error) {
	n, err := allowScript.Run(ctx, s.client, []string{key(id)}, now.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("breaker: allow %s: %w", id, err)
	}
	return n == 1, nil
}

// MarkSuccess implements Store.
func (s *RedisStore) MarkSuccess(ctx context.Context, id string) error {
	if err := successScript.Run(ctx, s.client, []string{key(id)}).Err(); err != nil {
		return fmt.Errorf("breaker: mark success %s: %w", id, err)
	}
	return nil
}

// MarkFailure implements Store.
func (s *RedisStore) MarkFailure(ctx context.Context, id string, now time.Time, threshold int, openFor time.Duration) error {
	err := failureScript.Run(ctx, s.client, []string{key(id)},
		now.UnixMilli(), threshold, openFor.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("breaker: mark failure %s: %w", id, err)
	}
	return nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("breaker: reset %s: %w", id, err)
	}
	return nil
}

// Snapshot implements Store.
func (s *RedisStore) Snapshot(ctx context.Context, id string) (Snapshot, error) {
	vals, err := s.client.HGetAll(ctx, key(id)).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("breaker: snapshot %s: %w", id, err)
	}
	snap := Snapshot{State: Closed}
	if st, ok := vals["state"]; ok && st != "" {
		snap.State = State(st)
	}
	if v, ok := vals["failures"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			snap.FailureCount = n
		}
	}
	if v, ok := vals["last_failure_ms"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			snap.LastFailure = time.UnixMilli(ms)
		}
	}
	if v, ok := vals["open_until_ms"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			snap.OpenUntil = time.UnixMilli(ms)
		}
	}
	return snap, nil
}
