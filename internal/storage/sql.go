package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"pyx-backend/pkg/logger"
)

type dialect struct {
	driver  string
	migrate string
	get     string
	upsert  string
	delete  string
	keys    string
}

var dialects = map[string]dialect{
	"sqlite": {
		driver: "sqlite3",
		migrate: `CREATE TABLE IF NOT EXISTS kv_store (
			k TEXT PRIMARY KEY,
			v BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		get: `SELECT v FROM kv_store WHERE k = ?`,
		upsert: `INSERT INTO kv_store (k, v, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at = excluded.updated_at`,
		delete: `DELETE FROM kv_store WHERE k = ?`,
		keys:   `SELECT k FROM kv_store WHERE substr(k, 1, ?) = ? ORDER BY k`,
	},
	"mysql": {
		driver: "mysql",
		migrate: `CREATE TABLE IF NOT EXISTS kv_store (
			k VARCHAR(255) NOT NULL PRIMARY KEY,
			v LONGBLOB NOT NULL,
			updated_at DATETIME(6) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
		get: `SELECT v FROM kv_store WHERE k = ?`,
		upsert: `INSERT INTO kv_store (k, v, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE v = VALUES(v), updated_at = VALUES(updated_at)`,
		delete: `DELETE FROM kv_store WHERE k = ?`,
		keys:   `SELECT k FROM kv_store WHERE SUBSTR(k, 1, ?) = ? ORDER BY k`,
	},
	"postgres": {
		driver: "pgx",
		migrate: `CREATE TABLE IF NOT EXISTS kv_store (
			k TEXT PRIMARY KEY,
			v BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		get: `SELECT v FROM kv_store WHERE k = $1`,
		upsert: `INSERT INTO kv_store (k, v, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, updated_at = EXCLUDED.updated_at`,
		delete: `DELETE FROM kv_store WHERE k = $1`,
		keys:   `SELECT k FROM kv_store WHERE substr(k, 1, $1::int) = $2 ORDER BY k`,
	},
}

// SQLStorage keeps keys in a single kv_store table on SQLite, MySQL or
// PostgreSQL.
type SQLStorage struct {
	name         string
	dsn          string
	maxOpenConns int
	d            dialect
	db           *sql.DB
}

var _ Storage = (*SQLStorage)(nil)

// NewSQLStorage accepts sqlite (or sqlite3), mysql and postgres (or pgx).
func NewSQLStorage(dbType, dsn string, maxOpenConns int) (*SQLStorage, error) {
	name := normalizeDialect(dbType)
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("%w: sql dialect %q", ErrUnknownBackend, dbType)
	}
	return &SQLStorage{name: name, dsn: dsn, maxOpenConns: maxOpenConns, d: d}, nil
}

func normalizeDialect(dbType string) string {
	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		return "sqlite"
	case "postgres", "postgresql", "pgx":
		return "postgres"
	default:
		return strings.ToLower(dbType)
	}
}

func (s *SQLStorage) Init() error {
	if s.dsn == "" {
		return fmt.Errorf("%w: %s dsn must be provided", ErrStorageInit, s.name)
	}

	db, err := sql.Open(s.d.driver, s.dsn)
	if err != nil {
		return fmt.Errorf("%w: open %s database: %v", ErrStorageInit, s.name, err)
	}

	// every connection to an in-memory SQLite database sees its own data
	if s.name == "sqlite" && strings.Contains(s.dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	} else if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: ping %s database: %v", ErrStorageInit, s.name, err)
	}
	if _, err := db.ExecContext(ctx, s.d.migrate); err != nil {
		db.Close()
		return fmt.Errorf("%w: migrate %s database: %v", ErrStorageInit, s.name, err)
	}

	s.db = db
	logger.Infof("SQL storage initialized (%s)", s.name)
	return nil
}

func (s *SQLStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, s.d.get, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLStorage) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.d.upsert, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.d.delete, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.d.keys, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStorage) Backup() error {
	return fmt.Errorf("%w: use the database's own tooling for %s", ErrBackupUnsupported, s.name)
}
