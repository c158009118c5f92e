package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionKey is the fixed key all viewers share; one session per key.
const DefaultSessionKey = "broadcast:session"

// RedisBackend persists the session blob in Redis so every process serving
// the broadcast reads the same timeline. The key carries a housekeeping TTL
// well past the session expiry; validity is still decided by ExpiresAt.
type RedisBackend struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisBackend connects to Redis and verifies the connection. key falls
// back to DefaultSessionKey and ttl is the housekeeping expiration for the
// stored blob (twice the session TTL is a reasonable choice).
func NewRedisBackend(addr, password string, db int, key string, ttl time.Duration) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if key == "" {
		key = DefaultSessionKey
	}
	return &RedisBackend{client: client, key: key, ttl: ttl}, nil
}

// Get implements SessionBackend.Get.
func (r *RedisBackend) Get(ctx context.Context) (*BroadcastSession, error) {
	blob, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var s BroadcastSession
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Put implements SessionBackend.Put.
func (r *RedisBackend) Put(ctx context.Context, s *BroadcastSession) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key, blob, r.ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Delete implements SessionBackend.Delete.
func (r *RedisBackend) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
