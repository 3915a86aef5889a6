package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/crm-agent/internal/db"
)

// ErrNotFound is returned by GetByID for unknown ids.
var ErrNotFound = errors.New("audit entry not found")

// Store provides persistence for audit entries.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts a new audit entry. Empty ID and zero Timestamp are filled in.
func (s *Store) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Diff == nil {
		entry.Diff = map[string]any{}
	}

	diff, err := json.Marshal(entry.Diff)
	if err != nil {
		return fmt.Errorf("marshalling audit diff: %w", err)
	}

	var actor sql.NullString
	if entry.Actor != "" {
		actor = sql.NullString{String: entry.Actor, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, actor, timestamp, diff)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		string(entry.EntityType),
		entry.EntityID,
		string(entry.Action),
		actor,
		db.FormatTime(entry.Timestamp),
		string(diff),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// GetByID retrieves a single audit entry.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, entity_type, entity_id, action, actor, timestamp, diff
		FROM audit_log WHERE id = ?`, id)

	e, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// QueryFilter controls which audit entries are returned by Query.
type QueryFilter struct {
	EntityType EntityType
	EntityID   string
	Actor      string
	Action     Action
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}

// Query returns audit entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.EntityType != "" {
		clauses = append(clauses, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}
	if filter.EntityID != "" {
		clauses = append(clauses, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.Actor != "" {
		clauses = append(clauses, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, db.FormatTime(*filter.Since))
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, db.FormatTime(*filter.Until))
	}

	query := "SELECT id, entity_type, entity_id, action, actor, timestamp, diff FROM audit_log"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteBefore removes all audit entries older than the given time.
// Returns the number of deleted rows.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_log WHERE timestamp < ?",
		db.FormatTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old audit entries: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Entry, error) {
	var (
		e                          Entry
		entityType, action, ts, df string
		entityID, actor            sql.NullString
	)

	if err := sc.Scan(&e.ID, &entityType, &entityID, &action, &actor, &ts, &df); err != nil {
		return nil, err
	}

	e.EntityType = EntityType(entityType)
	e.EntityID = entityID.String
	e.Action = Action(action)
	e.Actor = actor.String
	if t, err := db.ParseTime(ts); err == nil {
		e.Timestamp = t
	}
	if err := json.Unmarshal([]byte(df), &e.Diff); err != nil || e.Diff == nil {
		e.Diff = map[string]any{}
	}

	return &e, nil
}
