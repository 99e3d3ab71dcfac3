package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using github.com/redis/go-redis/v9.
// Each entry is a hash holding the payload and its creation time.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. The prefix namespaces keys to
// avoid conflicts; if empty, "krama:" is used.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "krama:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromURL creates a Redis store from a connection URL.
// Example: "redis://localhost:6379/0".
func NewRedisStoreFromURL(url string, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), prefix), nil
}

func (s *RedisStore) Get(ctx context.Context, digest string) (*Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+digest).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	entry := &Entry{Digest: digest, Payload: []byte(fields["payload"])}
	if raw, ok := fields["created_at"]; ok {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			entry.CreatedAt = time.Unix(unix, 0)
		}
	}
	return entry, nil
}

func (s *RedisStore) Put(ctx context.Context, entry *Entry) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	err := s.client.HSet(ctx, s.prefix+entry.Digest,
		"payload", entry.Payload,
		"created_at", strconv.FormatInt(created.Unix(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis clear: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

// Ping checks if the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
