package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB with crm-agent specific helpers.
type DB struct {
	*sql.DB
	mu   sync.Mutex
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
// The pool is pinned to one connection so every query sees the same database.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// Path returns the file path the database was opened from.
func (d *DB) Path() string { return d.path }

// WithWriteTx runs fn inside a transaction while holding the write lock.
// Read-modify-write sequences on a single record go through here so that
// concurrent requests cannot lose each other's updates.
func (d *DB) WithWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// TimeLayout is the fixed-width UTC layout used for every stored timestamp,
// so lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a stored timestamp. RFC 3339 and SQLite's datetime() output
// are accepted as well.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// FoldName returns the search key stored in hcps.name_folded. SQLite's
// lower() and LIKE only fold ASCII, so names are folded here instead.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	if _, err := d.Exec(schema); err != nil {
		return err
	}
	return d.migrateHCPNameFolded()
}

// migrateHCPNameFolded adds and backfills hcps.name_folded on databases
// created before the column existed.
func (d *DB) migrateHCPNameFolded() error {
	var n int
	if err := d.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('hcps') WHERE name = 'name_folded'`).Scan(&n); err != nil {
		return fmt.Errorf("inspecting hcps: %w", err)
	}
	if n == 0 {
		if _, err := d.Exec(`ALTER TABLE hcps ADD COLUMN name_folded TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("adding hcps.name_folded: %w", err)
		}
	}

	rows, err := d.Query(`SELECT id, name FROM hcps WHERE name_folded = '' AND name != ''`)
	if err != nil {
		return fmt.Errorf("selecting hcps to backfill: %w", err)
	}
	pending := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return err
		}
		pending[id] = FoldName(name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for id, folded := range pending {
		if _, err := d.Exec(`UPDATE hcps SET name_folded = ? WHERE id = ?`, folded, id); err != nil {
			return fmt.Errorf("backfilling hcp %s: %w", id, err)
		}
	}

	_, err = d.Exec(`CREATE INDEX IF NOT EXISTS idx_hcps_name_folded ON hcps(name_folded)`)
	return err
}

// schema contains the full database schema. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS hcps (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    name_folded TEXT NOT NULL DEFAULT '',
    title TEXT,
    speciality TEXT,
    organisation TEXT,
    contact TEXT,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hcps_name ON hcps(name);

CREATE TABLE IF NOT EXISTS interactions (
    id TEXT PRIMARY KEY,
    hcp_id TEXT REFERENCES hcps(id),
    rep_id TEXT,
    mode TEXT NOT NULL DEFAULT 'conversational' CHECK(mode IN ('structured','conversational')),
    datetime DATETIME,
    summary TEXT,
    sentiment TEXT CHECK(sentiment IS NULL OR sentiment IN ('positive','neutral','negative')),
    topics TEXT NOT NULL DEFAULT '[]',
    outcome TEXT,
    source_raw TEXT,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interactions_hcp ON interactions(hcp_id);
CREATE INDEX IF NOT EXISTS idx_interactions_rep ON interactions(rep_id);

CREATE TABLE IF NOT EXISTS materials_shared (
    id TEXT PRIMARY KEY,
    interaction_id TEXT NOT NULL REFERENCES interactions(id) ON DELETE CASCADE,
    material_type TEXT NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 0,
    notes TEXT,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_materials_interaction ON materials_shared(interaction_id);

CREATE TABLE IF NOT EXISTS samples (
    id TEXT PRIMARY KEY,
    interaction_id TEXT NOT NULL REFERENCES interactions(id) ON DELETE CASCADE,
    product_code TEXT NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 0,
    lot TEXT,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_samples_interaction ON samples(interaction_id);

CREATE TABLE IF NOT EXISTS follow_ups (
    id TEXT PRIMARY KEY,
    interaction_id TEXT NOT NULL REFERENCES interactions(id) ON DELETE CASCADE,
    due_date DATETIME,
    action_item TEXT NOT NULL,
    owner TEXT,
    status TEXT NOT NULL DEFAULT 'open',
    position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_follow_ups_interaction ON follow_ups(interaction_id);

CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id TEXT,
    action TEXT NOT NULL,
    actor TEXT,
    timestamp DATETIME NOT NULL,
    diff TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
`
