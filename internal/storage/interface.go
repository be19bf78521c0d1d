package storage

import "context"

// Storage is a durable key-value store. Values are opaque bytes; callers
// own serialization. Keys returns keys in ascending order.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)

	// 存储管理
	Init() error
	Close() error
	Backup() error
}
