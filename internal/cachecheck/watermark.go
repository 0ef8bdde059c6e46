package cachecheck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Watermark stores the time up to which changes have been reconciled.
// A store that has never been set returns the zero time, so the first run
// checks every book.
type Watermark interface {
	Get(ctx context.Context) (time.Time, error)
	Set(ctx context.Context, t time.Time) error
}

type MemoryWatermark struct {
	mu sync.RWMutex
	t  time.Time
}

func NewMemoryWatermark() *MemoryWatermark {
	return &MemoryWatermark{}
}

func (m *MemoryWatermark) Get(_ context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t, nil
}

func (m *MemoryWatermark) Set(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = t.UTC()
	return nil
}

const watermarkKey = "cachecheck:watermark"

// RedisWatermark keeps the watermark in Redis so it survives restarts and is
// shared by every instance running the checker.
type RedisWatermark struct {
	client *redis.Client
}

func NewRedisWatermark(client *redis.Client) *RedisWatermark {
	return &RedisWatermark{client: client}
}

func (r *RedisWatermark) Get(ctx context.Context) (time.Time, error) {
	val, err := r.client.Get(ctx, watermarkKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redis get failed: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark %q: %w", val, err)
	}
	return t.UTC(), nil
}

func (r *RedisWatermark) Set(ctx context.Context, t time.Time) error {
	if err := r.client.Set(ctx, watermarkKey, t.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
