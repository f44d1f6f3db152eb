package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect struct {
	driver  string
	migrate string
	get     string
	put     string
	del     string
	list    string
	// listArgs orders the prefix and its length for the list query.
	listArgs func(prefix string) []any
}

var sqliteDialect = dialect{
	driver: "sqlite",
	migrate: `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`,
	get:  `SELECT value FROM kv WHERE key = ?`,
	put:  `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
	del:  `DELETE FROM kv WHERE key = ?`,
	list: `SELECT key, value FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`,
	listArgs: func(prefix string) []any {
		return []any{len(prefix), prefix}
	},
}

var postgresDialect = dialect{
	driver: "postgres",
	migrate: `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	updated_at TIMESTAMPTZ DEFAULT now()
);`,
	get:  `SELECT value FROM kv WHERE key = $1`,
	put:  `INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now()) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
	del:  `DELETE FROM kv WHERE key = $1`,
	list: `SELECT key, value FROM kv WHERE substr(key, 1, $1) = $2 ORDER BY key COLLATE "C"`,
	listArgs: func(prefix string) []any {
		return []any{len(prefix), prefix}
	},
}

// SQL stores entries in a single kv table. It serves both sqlite and postgres.
type SQL struct {
	DB      *sql.DB
	dialect dialect
}

// OpenSQLite opens (or creates) a SQLite database file and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	return openSQL(ctx, sqliteDialect, path)
}

// OpenPostgres connects with a libpq style URL and migrates the kv table.
func OpenPostgres(ctx context.Context, url string) (*SQL, error) {
	return openSQL(ctx, postgresDialect, url)
}

func openSQL(ctx context.Context, d dialect, dsn string) (*SQL, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driver, err)
	}
	if d.driver == sqliteDialect.driver {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.driver, err)
	}

	s := &SQL{DB: db, dialect: d}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, s.dialect.migrate); err != nil {
		return fmt.Errorf("migrate %s: %w", s.dialect.driver, err)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.DB.QueryRowContext(ctx, s.dialect.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (s *SQL) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.DB.ExecContext(ctx, s.dialect.put, key, value); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, s.dialect.del, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *SQL) List(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.DB.QueryContext(ctx, s.dialect.list, s.dialect.listArgs(prefix)...)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	return entries, nil
}

func (s *SQL) Close() error {
	return s.DB.Close()
}
