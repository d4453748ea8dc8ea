package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

// KV 批处理任务用的最小 KV 接口。
// SetNX 语义的 Acquire 做任务互斥锁：多实例部署时
// 同一时刻只有一个实例跑 createRounds/completeRounds
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.c.SetNX(ctx, key, "1", ttl).Result()
}

func (r *RedisKV) Release(ctx context.Context, key string) error {
	return r.c.Del(ctx, key).Err()
}

// MemoryKV 测试/单机部署用的进程内实现
type MemoryKV struct {
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value    string
	expireAt time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: map[string]memoryEntry{}}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	e, ok := m.entries[key]
	if !ok || (!e.expireAt.IsZero() && time.Now().After(e.expireAt)) {
		return "", ErrMiss
	}
	return e.value, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryKV) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if _, err := m.Get(ctx, key); err == nil {
		return false, nil
	}
	return true, m.Set(ctx, key, "1", ttl)
}

func (m *MemoryKV) Release(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}
