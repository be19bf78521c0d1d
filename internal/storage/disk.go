package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pyx-backend/pkg/logger"
)

// DiskStorage keeps one file per key under dataDir/kv. File names are the
// base64url form of the key, so any key is a valid file name.
type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]cacheEntry
	cacheSize int
}

type cacheEntry struct {
	data     []byte
	cachedAt time.Time
}

var _ Storage = (*DiskStorage)(nil)

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]cacheEntry),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("Disk storage initialized at %s", d.dataDir)
	return nil
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "kv"),
		filepath.Join(d.dataDir, "backup"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) keyPath(key string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(key))
	return filepath.Join(d.dataDir, "kv", name+".json")
}

func (d *DiskStorage) Get(_ context.Context, key string) ([]byte, error) {
	d.mu.RLock()
	if entry, exists := d.cache[key]; exists {
		d.mu.RUnlock()
		return append([]byte(nil), entry.data...), nil
	}
	d.mu.RUnlock()

	data, err := os.ReadFile(d.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.mu.Lock()
	d.cache[key] = cacheEntry{data: data, cachedAt: time.Now()}
	d.evictCache()
	d.mu.Unlock()

	return append([]byte(nil), data...), nil
}

func (d *DiskStorage) Set(_ context.Context, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.keyPath(key)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, value, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[key] = cacheEntry{data: append([]byte(nil), value...), cachedAt: time.Now()}
	d.evictCache()
	return nil
}

func (d *DiskStorage) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.cache, key)
	if err := os.Remove(d.keyPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	files, err := os.ReadDir(filepath.Join(d.dataDir, "kv"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	keys := make([]string, 0)
	for _, file := range files {
		name := file.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, ".json"))
		if err != nil {
			logger.Warnf("Skipping unrecognised file in storage dir: %s", name)
			continue
		}
		if key := string(raw); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// evictCache drops the oldest entries once the cache exceeds cacheSize.
// Callers hold d.mu.
func (d *DiskStorage) evictCache() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	type keyAge struct {
		key      string
		cachedAt time.Time
	}

	entries := make([]keyAge, 0, len(d.cache))
	for key, entry := range d.cache {
		entries = append(entries, keyAge{key: key, cachedAt: entry.cachedAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].cachedAt.Before(entries[j].cachedAt)
	})

	toEvict := len(d.cache) - d.cacheSize
	for i := 0; i < toEvict; i++ {
		delete(d.cache, entries[i].key)
	}
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]cacheEntry)
	return nil
}

// Backup copies every stored key into a timestamped directory under
// dataDir/backup.
func (d *DiskStorage) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", time.Now().UnixNano()))
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := copyDir(filepath.Join(d.dataDir, "kv"), backupDir); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	logger.Infof("Backup completed: %s", backupDir)
	return nil
}

func copyDir(src, dst string) error {
	files, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, file.Name()))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dst, file.Name()), data, 0644); err != nil {
			return err
		}
	}

	return nil
}
