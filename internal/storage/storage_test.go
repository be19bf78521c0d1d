package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyx-backend/internal/config"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()

	sqlite, err := NewSQLStorage("sqlite3", filepath.Join(t.TempDir(), "kv.db"), 1)
	require.NoError(t, err)

	mr := miniredis.RunT(t)

	stores := map[string]Storage{
		"memory": NewMemoryStorage(),
		"disk":   NewDiskStorage(t.TempDir(), 2),
		"sqlite": sqlite,
		"redis":  NewRedisStorage(mr.Addr(), "", "", 0),
	}
	for name, s := range stores {
		require.NoError(t, s.Init(), name)
		s := s
		t.Cleanup(func() { s.Close() })
	}
	return stores
}

func TestStorageContract(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "pyx:v1:missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, s.Set(ctx, "pyx:v1:preferences", []byte(`{"a":1}`)))
			require.NoError(t, s.Set(ctx, "pyx:v1:profile", []byte(`{"b":2}`)))
			require.NoError(t, s.Set(ctx, "pyx:v2:profile", []byte(`{}`)))
			require.NoError(t, s.Set(ctx, "other", []byte(`x`)))

			got, err := s.Get(ctx, "pyx:v1:preferences")
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(got))

			// overwrite
			require.NoError(t, s.Set(ctx, "pyx:v1:preferences", []byte(`{"a":2}`)))
			got, err = s.Get(ctx, "pyx:v1:preferences")
			require.NoError(t, err)
			assert.Equal(t, `{"a":2}`, string(got))

			keys, err := s.Keys(ctx, "pyx:v1:")
			require.NoError(t, err)
			assert.Equal(t, []string{"pyx:v1:preferences", "pyx:v1:profile"}, keys)

			all, err := s.Keys(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 4)

			require.NoError(t, s.Delete(ctx, "pyx:v1:profile"))
			require.NoError(t, s.Delete(ctx, "pyx:v1:profile"))
			_, err = s.Get(ctx, "pyx:v1:profile")
			assert.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func TestMemoryStorageCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestDiskStoragePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := NewDiskStorage(dir, 1)
	require.NoError(t, first.Init())
	require.NoError(t, first.Set(ctx, "pyx:visitor/with:odd*chars", []byte("v")))
	require.NoError(t, first.Close())

	second := NewDiskStorage(dir, 1)
	require.NoError(t, second.Init())
	got, err := second.Get(ctx, "pyx:visitor/with:odd*chars")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestDiskStorageCacheIsBounded(t *testing.T) {
	ctx := context.Background()
	s := NewDiskStorage(t.TempDir(), 2)
	require.NoError(t, s.Init())

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Set(ctx, k, []byte(k)))
	}
	assert.LessOrEqual(t, len(s.cache), 2)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))
}

func TestDiskStorageBackup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewDiskStorage(dir, 10)
	require.NoError(t, s.Init())
	require.NoError(t, s.Set(ctx, "k", []byte("v")))

	require.NoError(t, s.Backup())

	entries, err := os.ReadDir(filepath.Join(dir, "backup"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	files, err := os.ReadDir(filepath.Join(dir, "backup", entries[0].Name()))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSQLStorageRejectsUnknownDialect(t *testing.T) {
	_, err := NewSQLStorage("oracle", "dsn", 1)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestSQLStorageRequiresDSN(t *testing.T) {
	s, err := NewSQLStorage("sqlite", "", 1)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Init(), ErrStorageInit)
	assert.ErrorIs(t, s.Backup(), ErrBackupUnsupported)
}

func TestSQLiteInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLStorage("sqlite", "file::memory:?cache=shared", 10)
	require.NoError(t, err)
	require.NoError(t, s.Init())
	defer s.Close()

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestRedisInitFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	s := NewRedisStorage(addr, "", "", 0)
	assert.ErrorIs(t, s.Init(), ErrStorageInit)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `pyx:\*:\?\[x\]`, escapeGlob("pyx:*:?[x]"))
}

func TestNewSelectsBackend(t *testing.T) {
	cases := map[string]interface{}{
		"":         &MemoryStorage{},
		"memory":   &MemoryStorage{},
		"disk":     &DiskStorage{},
		"sqlite":   &SQLStorage{},
		"postgres": &SQLStorage{},
		"mysql":    &SQLStorage{},
		"redis":    &RedisStorage{},
	}
	for typ, want := range cases {
		s, err := New(config.StorageConfig{Type: typ, DataDir: t.TempDir()})
		require.NoError(t, err, typ)
		assert.IsType(t, want, s, typ)
	}

	_, err := New(config.StorageConfig{Type: "tape"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpenFallsBackToMemory(t *testing.T) {
	s := Open(config.StorageConfig{Type: "sqlite"})
	assert.IsType(t, &MemoryStorage{}, s)
}
