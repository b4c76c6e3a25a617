package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/nimbusworks/taskgate/internal/core/ports"
)

const scanPageSize = 200

// incrWindowScript increments a window counter and, on the first hit, sets
// its expiry — in a single atomic round trip. Without this, a crash between
// INCR and EXPIRE would leave a counter that never expires.
var incrWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {count, redis.call("PTTL", KEYS[1])}
`)

// Store implements ports.KV on a Redis client. It owns the process-wide
// connection handle; Close it once on shutdown.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

var _ ports.KV = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *Store) MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	pipe := s.client.Pipeline()
	for key, value := range entries {
		pipe.Set(ctx, key, value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mset: %w", err)
	}
	return nil
}

func (s *Store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	out := make([][]byte, len(keys))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[i] = []byte(str)
		}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		page, next, err := s.client.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %q: %w", pattern, err)
		}
		keys = append(keys, page...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *Store) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrWindowScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr window %q: %w", key, err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("redis incr window %q: unexpected reply %v", key, res)
	}
	count, _ := vals[0].(int64)
	pttl, _ := vals[1].(int64)
	return count, time.Duration(pttl) * time.Millisecond, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire %q: %w", key, err)
	}
	return nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pttl %q: %w", key, err)
	}
	// PTTL reports missing keys and keys without expiry as negative values.
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *Store) SetMarkerNX(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.SetNX(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx %q: %w", key, err)
	}
	return nil
}

func (s *Store) FlushAll(ctx context.Context) error {
	if err := s.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("redis flushdb: %w", err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (int64, int64, error) {
	size, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis dbsize: %w", err)
	}
	info, err := s.client.Info(ctx, "memory").Result()
	if err != nil {
		return size, 0, fmt.Errorf("redis info memory: %w", err)
	}
	return size, parseUsedMemory(info), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// parseUsedMemory extracts used_memory from an INFO memory reply.
func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\r\n") {
		if rest, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}
