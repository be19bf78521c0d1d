package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	redis "github.com/redis/go-redis/v9"

	"pyx-backend/pkg/logger"
)

// RedisStorage stores each key as a plain redis string without expiry.
type RedisStorage struct {
	opts  *redis.Options
	inner *redis.Client
}

var _ Storage = (*RedisStorage)(nil)

func NewRedisStorage(addr, username, password string, db int) *RedisStorage {
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	return &RedisStorage{opts: &redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	}}
}

func (r *RedisStorage) Init() error {
	client := redis.NewClient(r.opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("%w: redis ping %s: %v", ErrStorageInit, r.opts.Addr, err)
	}
	r.inner = client
	logger.Infof("Redis storage initialized at %s", r.opts.Addr)
	return nil
}

func (r *RedisStorage) client() (*redis.Client, error) {
	if r == nil || r.inner == nil {
		return nil, errors.New("redis client not initialized")
	}
	return r.inner, nil
}

func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	c, err := r.client()
	if err != nil {
		return nil, err
	}
	v, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	c, err := r.client()
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	c, err := r.client()
	if err != nil {
		return err
	}
	if err := c.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Keys walks the keyspace with SCAN so large databases are not blocked.
func (r *RedisStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	c, err := r.client()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0)
	iter := c.Scan(ctx, 0, escapeGlob(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func (r *RedisStorage) Close() error {
	if r == nil || r.inner == nil {
		return nil
	}
	return r.inner.Close()
}

func (r *RedisStorage) Backup() error {
	c, err := r.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.BgSave(ctx).Err(); err != nil {
		return fmt.Errorf("redis bgsave: %w", err)
	}
	logger.Info("Redis background save triggered")
	return nil
}
