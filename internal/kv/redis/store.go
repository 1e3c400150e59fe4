// Package redis provides a kv.Store backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

const scanBatch = 100

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store implements kv.Store on top of a go-redis client.
type Store struct {
	client goredis.UniversalClient
}

// New dials Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable("ping", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client (primarily for testing).
func NewWithClient(client goredis.UniversalClient) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Store{client: client}, nil
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get "+key, err)
	}
	return value, true, nil
}

// Set implements kv.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return unavailable("set "+key, err)
	}
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable("del", err)
	}
	return n, nil
}

// PushEnd implements kv.Store.
func (s *Store) PushEnd(ctx context.Context, key string, items ...string) (int64, error) {
	if len(items) == 0 {
		return s.Length(ctx, key)
	}
	n, err := s.client.RPush(ctx, key, toArgs(items)...).Result()
	if err != nil {
		return 0, unavailable("rpush "+key, err)
	}
	return n, nil
}

// PushStart implements kv.Store.
func (s *Store) PushStart(ctx context.Context, key string, items ...string) (int64, error) {
	if len(items) == 0 {
		return s.Length(ctx, key)
	}
	n, err := s.client.LPush(ctx, key, toArgs(items)...).Result()
	if err != nil {
		return 0, unavailable("lpush "+key, err)
	}
	return n, nil
}

// PopStart implements kv.Store.
func (s *Store) PopStart(ctx context.Context, key string, count int) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}
	items, err := s.client.LPopCount(ctx, key, count).Result()
	if errors.Is(err, goredis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, unavailable("lpop "+key, err)
	}
	return items, nil
}

// PopEnd implements kv.Store.
func (s *Store) PopEnd(ctx context.Context, key string, count int) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}
	items, err := s.client.RPopCount(ctx, key, count).Result()
	if errors.Is(err, goredis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, unavailable("rpop "+key, err)
	}
	return items, nil
}

// Range implements kv.Store.
func (s *Store) Range(ctx context.Context, key string, start, end int64) ([]string, error) {
	items, err := s.client.LRange(ctx, key, start, end).Result()
	if err != nil {
		return nil, unavailable("lrange "+key, err)
	}
	return items, nil
}

// Length implements kv.Store.
func (s *Store) Length(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, unavailable("llen "+key, err)
	}
	return n, nil
}

// ScanKeys implements kv.Store using an incremental SCAN cursor.
func (s *Store) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	seen := make(map[string]struct{})
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, unavailable("scan "+pattern, err)
		}
		for _, key := range batch {
			// SCAN may return a key more than once.
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// Close releases the client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}

func toArgs(items []string) []any {
	args := make([]any, len(items))
	for i, item := range items {
		args[i] = item
	}
	return args
}

func unavailable(op string, err error) error {
	return fmt.Errorf("redis %s: %w: %w", op, audit.ErrStoreUnavailable, err)
}
