package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	tables := []string{
		"hcps", "interactions", "materials_shared",
		"samples", "follow_ups", "audit_log",
	}

	for _, table := range tables {
		var count int
		err := d.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "crm.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer d.Close()

	if d.Path() != path {
		t.Errorf("Path() = %q, want %q", d.Path(), path)
	}
}

func TestSentimentCheckConstraint(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	_, err = d.Exec(`INSERT INTO interactions (id, sentiment, created_at, updated_at)
		VALUES ('i1', 'ecstatic', datetime('now'), datetime('now'))`)
	if err == nil {
		t.Error("expected CHECK constraint failure for unknown sentiment")
	}
}

func TestWithWriteTxRollsBackOnError(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	boom := errors.New("boom")
	err = d.WithWriteTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO hcps (id, name, created_at, updated_at)
			VALUES ('h1', 'Dr. X', datetime('now'), datetime('now'))`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var count int
	if err := d.QueryRow("SELECT COUNT(*) FROM hcps").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected rollback, found %d rows", count)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	in := time.Date(2025, 3, 4, 10, 30, 0, 123000, time.FixedZone("IST", 5*3600+1800))
	got, err := ParseTime(FormatTime(in))
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !got.Equal(in) {
		t.Errorf("round trip = %v, want %v", got, in)
	}

	if _, err := ParseTime("2025-03-04 10:30:00"); err != nil {
		t.Errorf("sqlite datetime layout should parse: %v", err)
	}
	if _, err := ParseTime("next tuesday"); err == nil {
		t.Error("expected error for free text")
	}
}

func TestMigrateBackfillsFoldedNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	// Simulate a database created before name_folded existed.
	for _, stmt := range []string{
		`DROP INDEX idx_hcps_name_folded`,
		`ALTER TABLE hcps DROP COLUMN name_folded`,
		`INSERT INTO hcps (id, name, created_at, updated_at) VALUES ('h1', 'Dr. Özlem Ünal', datetime('now'), datetime('now'))`,
	} {
		if _, err := d.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	d.Close()

	d, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()

	var folded string
	if err := d.QueryRow(`SELECT name_folded FROM hcps WHERE id = 'h1'`).Scan(&folded); err != nil {
		t.Fatalf("select: %v", err)
	}
	if folded != FoldName("Dr. Özlem Ünal") || folded != "dr. özlem ünal" {
		t.Errorf("name_folded = %q", folded)
	}
}

func TestFoldName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Dr. Meera Patel", "dr. meera patel"},
		{"  ÜNAL ", "ünal"},
		{"Straße", "strasse"},
	}
	for _, tt := range tests {
		if got := FoldName(tt.in); got != tt.want {
			t.Errorf("FoldName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
