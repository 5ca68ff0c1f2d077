// Package cache is a small JSON-over-redis read-through store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// NewClient connects to the redis server at url (redis://host:port/db) and
// verifies it answers PING.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Store keeps JSON snapshots of T under prefix+id with a fixed TTL.
type Store[T any] struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewStore[T any](client redis.Cmdable, prefix string, ttl time.Duration) *Store[T] {
	return &Store[T]{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store[T]) key(id string) string {
	return s.prefix + id
}

func (s *Store[T]) Get(ctx context.Context, id string) (*T, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", s.key(id), err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		// a snapshot from an older schema; drop it and report a miss
		s.client.Del(ctx, s.key(id))
		return nil, ErrMiss
	}
	return &v, nil
}

func (s *Store[T]) Set(ctx context.Context, id string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", s.key(id), err)
	}
	return nil
}

func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", s.key(id), err)
	}
	return nil
}
