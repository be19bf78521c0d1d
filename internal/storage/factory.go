package storage

import (
	"fmt"
	"strings"

	"pyx-backend/internal/config"
	"pyx-backend/pkg/logger"
)

// New builds the backend named by cfg.Type without initializing it.
func New(cfg config.StorageConfig) (Storage, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "disk":
		return NewDiskStorage(cfg.DataDir, cfg.CacheSize), nil
	case "sqlite", "sqlite3", "mysql", "postgres", "postgresql", "pgx":
		return NewSQLStorage(cfg.Type, cfg.SQL.DSN, cfg.SQL.MaxOpenConns)
	case "redis":
		return NewRedisStorage(cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Type)
	}
}

// Open builds and initializes the configured backend. If that fails the
// process keeps running on memory storage.
func Open(cfg config.StorageConfig) Storage {
	store, err := New(cfg)
	if err == nil {
		err = store.Init()
	}
	if err != nil {
		logger.Errorf("Failed to initialize %s storage, falling back to memory: %v", cfg.Type, err)
		store = NewMemoryStorage()
		store.Init()
	}
	return store
}
