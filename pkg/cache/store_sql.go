package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// SQLDialect defines the SQL syntax variant.
type SQLDialect string

const (
	DialectSQLite   SQLDialect = "sqlite"
	DialectPostgres SQLDialect = "postgres"
	DialectMySQL    SQLDialect = "mysql"
)

// SQLStore implements Store using database/sql.
// It supports SQLite, Postgres, and MySQL; the caller opens the *sql.DB
// with their preferred driver. The schema is created lazily on first use.
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect

	initOnce sync.Once
	initErr  error
}

// NewSQLStore creates a new SQL-backed store.
func NewSQLStore(db *sql.DB, tableName string, dialect SQLDialect) *SQLStore {
	if tableName == "" {
		tableName = "krama_cache"
	}
	return &SQLStore{
		db:        db,
		tableName: tableName,
		dialect:   dialect,
	}
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.initOnce.Do(func() {
		blobType := "BLOB"
		timestampType := "TIMESTAMP"
		if s.dialect == DialectPostgres {
			blobType = "BYTEA"
			timestampType = "TIMESTAMPTZ"
		} else if s.dialect == DialectMySQL {
			timestampType = "DATETIME"
		}

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				digest VARCHAR(64) PRIMARY KEY,
				payload %s,
				created_at %s
			);
		`, s.tableName, blobType, timestampType)

		_, s.initErr = s.db.ExecContext(ctx, query)
	})
	return s.initErr
}

func (s *SQLStore) Get(ctx context.Context, digest string) (*Entry, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	p1 := "?"
	if s.dialect == DialectPostgres {
		p1 = "$1"
	}

	query := fmt.Sprintf(`SELECT payload, created_at FROM %s WHERE digest = %s`, s.tableName, p1)

	var payload []byte
	var createdAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, digest).Scan(&payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry %s: %w", digest, err)
	}

	entry := &Entry{Digest: digest, Payload: payload}
	if createdAt.Valid {
		entry.CreatedAt = createdAt.Time
	}
	return entry, nil
}

func (s *SQLStore) Put(ctx context.Context, entry *Entry) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	var query string
	switch s.dialect {
	case DialectMySQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (digest, payload, created_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE
				payload = VALUES(payload),
				created_at = VALUES(created_at)
		`, s.tableName)
	case DialectPostgres:
		query = fmt.Sprintf(`
			INSERT INTO %s (digest, payload, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT(digest) DO UPDATE SET
				payload = excluded.payload,
				created_at = excluded.created_at
		`, s.tableName)
	default:
		query = fmt.Sprintf(`
			INSERT INTO %s (digest, payload, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT(digest) DO UPDATE SET
				payload = excluded.payload,
				created_at = excluded.created_at
		`, s.tableName)
	}

	_, err := s.db.ExecContext(ctx, query, entry.Digest, entry.Payload, created)
	if err != nil {
		return fmt.Errorf("put cache entry %s: %w", entry.Digest, err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.tableName))
	return err
}
