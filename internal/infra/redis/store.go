// Package redis implements the key/value port on a Redis server so the
// local transaction cache and settings survive restarts and are shared by
// the API and worker processes.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/smart-finance/internal/kv"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this store.
const DefaultPrefix = "smart-finance:"

// Store implements kv.Store.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore connects to addr and checks the connection.
func NewStore(ctx context.Context, addr, password string, db int, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("NewStore: ping %s: %w", addr, err)
	}
	return NewStoreWithClient(client, prefix), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %s: %w", key, err)
	}
	return val, nil
}

// Set implements kv.Store. Values never expire.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("Set: %s: %w", key, err)
	}
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("Delete: %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
