package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = FULL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS documents (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS receipts (
    record_id    TEXT NOT NULL,
    group_id     TEXT NOT NULL,
    note_id      TEXT NOT NULL DEFAULT '',
    tx_hash      TEXT NOT NULL DEFAULT '',
    uri          TEXT NOT NULL DEFAULT '',
    run_id       TEXT NOT NULL DEFAULT '',
    published_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS receipts_published ON receipts(published_at);

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);
`

// schemaVersion is bumped whenever the document layout changes.
const schemaVersion = "1"

// DB is the SQLite-backed document store and receipt journal.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps the single-writer assumption honest
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	d := &DB{db: db, now: time.Now}
	if err := d.writeSchemaVersion(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema version: %w", err)
	}
	return d, nil
}

func (d *DB) writeSchemaVersion() error {
	_, err := sq.Insert("meta").
		Columns("key", "value").
		Values("schema_version", schemaVersion).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		RunWith(d.db).
		Exec()
	return err
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

// Get returns the raw document stored under key. The bool is false when the
// document has never been saved.
func (d *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := sq.Select("value").
		From("documents").
		Where(sq.Eq{"key": key}).
		RunWith(d.db).
		QueryRowContext(ctx).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// Put overwrites the document under key in a single statement, so a crash
// leaves either the old or the new value, never a mix.
func (d *DB) Put(ctx context.Context, key string, value []byte) error {
	_, err := sq.Insert("documents").
		Columns("key", "value", "updated_at").
		Values(key, string(value), d.now().UnixMilli()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		RunWith(d.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("put document %s: %w", key, err)
	}
	return nil
}

// Delete removes a document; loading it afterwards yields the default again.
func (d *DB) Delete(ctx context.Context, key string) error {
	_, err := sq.Delete("documents").
		Where(sq.Eq{"key": key}).
		RunWith(d.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

// UpdatedAt reports when key was last saved. The zero time means never.
func (d *DB) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var ms int64
	err := sq.Select("updated_at").
		From("documents").
		Where(sq.Eq{"key": key}).
		RunWith(d.db).
		QueryRowContext(ctx).
		Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("document %s timestamp: %w", key, err)
	}
	return time.UnixMilli(ms), nil
}
