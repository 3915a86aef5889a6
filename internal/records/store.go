package records

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

// ErrNotFound is returned when an HCP or interaction does not exist.
var ErrNotFound = errors.New("record not found")

// Store persists HCPs and interactions in SQLite.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// querier is satisfied by both *db.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- HCPs ---

// CreateHCP inserts a new HCP and returns it.
func (s *Store) CreateHCP(ctx context.Context, in HCPCreate) (*HCP, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.New("hcp name is required")
	}

	now := s.now().UTC()
	h := &HCP{
		ID:           uuid.New().String(),
		Name:         name,
		Title:        in.Title,
		Speciality:   in.Speciality,
		Organisation: in.Organisation,
		Contact:      in.Contact,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	contact, err := marshalNullable(h.Contact)
	if err != nil {
		return nil, fmt.Errorf("marshalling contact: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hcps (id, name, name_folded, title, speciality, organisation, contact, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Name, db.FoldName(h.Name), nullString(h.Title), nullString(h.Speciality), nullString(h.Organisation),
		contact, db.FormatTime(now), db.FormatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting hcp: %w", err)
	}
	return h, nil
}

// GetHCP returns the HCP with the given id.
func (s *Store) GetHCP(ctx context.Context, id string) (*HCP, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, title, speciality, organisation, contact, created_at, updated_at
		FROM hcps WHERE id = ?`, id)
	h, err := scanHCP(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("hcp %s: %w", id, ErrNotFound)
	}
	return h, err
}

// SearchHCPByName returns HCPs whose name contains query, ignoring case
// (Unicode-aware, via db.FoldName), ordered by name. limit <= 0 means no limit.
func (s *Store) SearchHCPByName(ctx context.Context, query string, limit int) ([]HCP, error) {
	pattern := "%" + escapeLike(db.FoldName(query)) + "%"
	q := `SELECT id, name, title, speciality, organisation, contact, created_at, updated_at
		FROM hcps WHERE name_folded LIKE ? ESCAPE '\' ORDER BY name`
	args := []any{pattern}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryHCPs(ctx, q, args...)
}

// ListHCPs returns every HCP ordered by name.
func (s *Store) ListHCPs(ctx context.Context) ([]HCP, error) {
	return s.queryHCPs(ctx, `SELECT id, name, title, speciality, organisation, contact, created_at, updated_at
		FROM hcps ORDER BY name`)
}

func (s *Store) queryHCPs(ctx context.Context, query string, args ...any) ([]HCP, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying hcps: %w", err)
	}
	defer rows.Close()

	hcps := []HCP{}
	for rows.Next() {
		h, err := scanHCP(rows)
		if err != nil {
			return nil, err
		}
		hcps = append(hcps, *h)
	}
	return hcps, rows.Err()
}

// --- Interactions ---

// CreateInteraction inserts an interaction and all of its child records in a
// single transaction. Mode defaults to conversational.
func (s *Store) CreateInteraction(ctx context.Context, in InteractionCreate) (*Interaction, error) {
	mode := in.Mode
	if mode == "" {
		mode = ModeConversational
	}
	if mode != ModeConversational && mode != ModeStructured {
		return nil, fmt.Errorf("invalid interaction mode %q", mode)
	}
	if in.Sentiment != "" && !ValidSentiment(in.Sentiment) {
		return nil, fmt.Errorf("invalid sentiment %q", in.Sentiment)
	}

	id := uuid.New().String()
	now := s.now().UTC()

	err := s.db.WithWriteTx(ctx, func(tx *sql.Tx) error {
		if in.HCPID != "" {
			var exists int
			err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM hcps WHERE id = ?", in.HCPID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("checking hcp: %w", err)
			}
			if exists == 0 {
				return fmt.Errorf("hcp %s: %w", in.HCPID, ErrNotFound)
			}
		}

		topics, err := json.Marshal(nonNilStrings(in.Topics))
		if err != nil {
			return fmt.Errorf("marshalling topics: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO interactions (id, hcp_id, rep_id, mode, datetime, summary, sentiment,
				topics, outcome, source_raw, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, nullString(in.HCPID), nullString(in.RepID), mode, nullTime(in.Datetime),
			nullString(in.Summary), nullString(in.Sentiment), string(topics),
			nullString(in.Outcome), nullString(in.SourceRaw),
			db.FormatTime(now), db.FormatTime(now),
		)
		if err != nil {
			return fmt.Errorf("inserting interaction: %w", err)
		}

		return insertChildren(ctx, tx, id, in.Materials, in.Samples, in.FollowUps)
	})
	if err != nil {
		return nil, err
	}

	return s.GetInteraction(ctx, id)
}

// GetInteraction returns the interaction with its materials, samples and
// follow-ups.
func (s *Store) GetInteraction(ctx context.Context, id string) (*Interaction, error) {
	return getInteraction(ctx, s.db, id)
}

// ListInteractions returns interactions matching the filter, newest first.
func (s *Store) ListInteractions(ctx context.Context, filter InteractionFilter) ([]Interaction, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.HCPID != "" {
		clauses = append(clauses, "hcp_id = ?")
		args = append(args, filter.HCPID)
	}
	if filter.RepID != "" {
		clauses = append(clauses, "rep_id = ?")
		args = append(args, filter.RepID)
	}

	query := "SELECT " + interactionColumns + " FROM interactions"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}

	// Children are loaded after the cursor is closed; the in-memory
	// database only has one connection.
	items := []Interaction{}
	for rows.Next() {
		it, err := scanInteraction(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range items {
		if err := loadChildren(ctx, s.db, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// UpdateInteraction applies patch to the interaction and returns the updated
// record. Only known mutable fields are applied; unknown keys, id and
// created_at are ignored. The read-modify-write runs in one transaction under
// the store's write lock.
func (s *Store) UpdateInteraction(ctx context.Context, id string, patch map[string]any) (*Interaction, error) {
	var updated *Interaction

	err := s.db.WithWriteTx(ctx, func(tx *sql.Tx) error {
		current, err := getInteraction(ctx, tx, id)
		if err != nil {
			return err
		}

		replaceChildren, err := applyPatch(current, FilterPatch(patch))
		if err != nil {
			return err
		}
		current.UpdatedAt = s.now().UTC()

		topics, err := json.Marshal(nonNilStrings(current.Topics))
		if err != nil {
			return fmt.Errorf("marshalling topics: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE interactions SET hcp_id = ?, rep_id = ?, mode = ?, datetime = ?, summary = ?,
				sentiment = ?, topics = ?, outcome = ?, source_raw = ?, updated_at = ?
			WHERE id = ?`,
			nullString(current.HCPID), nullString(current.RepID), current.Mode, nullTime(current.Datetime),
			nullString(current.Summary), nullString(current.Sentiment), string(topics),
			nullString(current.Outcome), nullString(current.SourceRaw), db.FormatTime(current.UpdatedAt),
			id,
		)
		if err != nil {
			return fmt.Errorf("updating interaction: %w", err)
		}

		if replaceChildren {
			if err := deleteChildren(ctx, tx, id); err != nil {
				return err
			}
			if err := insertChildren(ctx, tx, id, current.Materials, current.Samples, current.FollowUps); err != nil {
				return err
			}
		}

		updated, err = getInteraction(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteInteraction removes an interaction and its child records.
func (s *Store) DeleteInteraction(ctx context.Context, id string) error {
	return s.db.WithWriteTx(ctx, func(tx *sql.Tx) error {
		if err := deleteChildren(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM interactions WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting interaction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("interaction %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// --- helpers ---

const interactionColumns = `id, hcp_id, rep_id, mode, datetime, summary, sentiment, topics,
	outcome, source_raw, created_at, updated_at`

func getInteraction(ctx context.Context, q querier, id string) (*Interaction, error) {
	row := q.QueryRowContext(ctx, "SELECT "+interactionColumns+" FROM interactions WHERE id = ?", id)
	it, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, q, it); err != nil {
		return nil, err
	}
	return it, nil
}

func loadChildren(ctx context.Context, q querier, it *Interaction) error {
	it.Materials = []Material{}
	it.Samples = []Sample{}
	it.FollowUps = []FollowUp{}

	rows, err := q.QueryContext(ctx, `SELECT id, material_type, quantity, notes
		FROM materials_shared WHERE interaction_id = ? ORDER BY position`, it.ID)
	if err != nil {
		return fmt.Errorf("querying materials: %w", err)
	}
	for rows.Next() {
		var m Material
		var notes sql.NullString
		if err := rows.Scan(&m.ID, &m.MaterialType, &m.Quantity, &notes); err != nil {
			rows.Close()
			return err
		}
		m.Notes = notes.String
		it.Materials = append(it.Materials, m)
	}
	rows.Close()

	rows, err = q.QueryContext(ctx, `SELECT id, product_code, quantity, lot
		FROM samples WHERE interaction_id = ? ORDER BY position`, it.ID)
	if err != nil {
		return fmt.Errorf("querying samples: %w", err)
	}
	for rows.Next() {
		var sm Sample
		var lot sql.NullString
		if err := rows.Scan(&sm.ID, &sm.ProductCode, &sm.Quantity, &lot); err != nil {
			rows.Close()
			return err
		}
		sm.Lot = lot.String
		it.Samples = append(it.Samples, sm)
	}
	rows.Close()

	rows, err = q.QueryContext(ctx, `SELECT id, interaction_id, due_date, action_item, owner, status
		FROM follow_ups WHERE interaction_id = ? ORDER BY position`, it.ID)
	if err != nil {
		return fmt.Errorf("querying follow-ups: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f FollowUp
		var due, owner sql.NullString
		if err := rows.Scan(&f.ID, &f.InteractionID, &due, &f.ActionItem, &owner, &f.Status); err != nil {
			return err
		}
		f.DueDate = parseNullTime(due)
		f.Owner = owner.String
		it.FollowUps = append(it.FollowUps, f)
	}
	return rows.Err()
}

func insertChildren(ctx context.Context, tx *sql.Tx, interactionID string, materials []Material, samples []Sample, followUps []FollowUp) error {
	for i, m := range materials {
		_, err := tx.ExecContext(ctx, `INSERT INTO materials_shared (id, interaction_id, material_type, quantity, notes, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), interactionID, m.MaterialType, m.Quantity, nullString(m.Notes), i)
		if err != nil {
			return fmt.Errorf("inserting material: %w", err)
		}
	}
	for i, sm := range samples {
		_, err := tx.ExecContext(ctx, `INSERT INTO samples (id, interaction_id, product_code, quantity, lot, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), interactionID, sm.ProductCode, sm.Quantity, nullString(sm.Lot), i)
		if err != nil {
			return fmt.Errorf("inserting sample: %w", err)
		}
	}
	for i, f := range followUps {
		status := f.Status
		if status == "" {
			status = FollowUpStatusOpen
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO follow_ups (id, interaction_id, due_date, action_item, owner, status, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), interactionID, nullTime(f.DueDate), f.ActionItem, nullString(f.Owner), status, i)
		if err != nil {
			return fmt.Errorf("inserting follow-up: %w", err)
		}
	}
	return nil
}

func deleteChildren(ctx context.Context, tx *sql.Tx, interactionID string) error {
	for _, table := range []string{"materials_shared", "samples", "follow_ups"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE interaction_id = ?", interactionID); err != nil {
			return fmt.Errorf("deleting %s: %w", table, err)
		}
	}
	return nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanHCP(sc scanner) (*HCP, error) {
	var (
		h                               HCP
		title, speciality, org, contact sql.NullString
		createdAt, updatedAt            string
	)
	if err := sc.Scan(&h.ID, &h.Name, &title, &speciality, &org, &contact, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	h.Title = title.String
	h.Speciality = speciality.String
	h.Organisation = org.String
	if contact.Valid && contact.String != "" {
		if err := json.Unmarshal([]byte(contact.String), &h.Contact); err != nil {
			h.Contact = nil
		}
	}
	h.CreatedAt, _ = db.ParseTime(createdAt)
	h.UpdatedAt, _ = db.ParseTime(updatedAt)
	return &h, nil
}

func scanInteraction(sc scanner) (*Interaction, error) {
	var (
		it                                                       Interaction
		hcpID, repID, dt, summary, sentiment, outcome, sourceRaw sql.NullString
		topics, createdAt, updatedAt                             string
	)
	err := sc.Scan(&it.ID, &hcpID, &repID, &it.Mode, &dt, &summary, &sentiment, &topics,
		&outcome, &sourceRaw, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	it.HCPID = hcpID.String
	it.RepID = repID.String
	it.Datetime = parseNullTime(dt)
	it.Summary = summary.String
	it.Sentiment = sentiment.String
	it.Outcome = outcome.String
	it.SourceRaw = sourceRaw.String
	if err := json.Unmarshal([]byte(topics), &it.Topics); err != nil || it.Topics == nil {
		it.Topics = []string{}
	}
	it.CreatedAt, _ = db.ParseTime(createdAt)
	it.UpdatedAt, _ = db.ParseTime(updatedAt)
	return &it, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: db.FormatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := db.ParseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

func marshalNullable(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
