package speaker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed speaker store.
// The db parameter should be an open SQLite connection with the
// speakers table migrated.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// List retrieves all configured speakers ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT id, name, address, created_at, updated_at
		FROM speakers
		ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying speakers: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor cleanup

	var records []Record
	for rows.Next() {
		var rec Record
		var createdAt, updatedAt string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Address, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning speaker row: %w", err)
		}
		rec.CreatedAt = parseTimestamp(createdAt)
		rec.UpdatedAt = parseTimestamp(updatedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating speaker rows: %w", err)
	}
	return records, nil
}

// Create inserts a new speaker record.
func (s *SQLiteStore) Create(ctx context.Context, rec *Record) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	query := `
		INSERT INTO speakers (id, name, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.Address,
		formatTimestamp(rec.CreatedAt), formatTimestamp(rec.UpdatedAt),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %s", ErrSpeakerExists, rec.ID)
		}
		return fmt.Errorf("inserting speaker: %w", err)
	}
	return nil
}

// UpdateAddress persists a speaker's new network address.
func (s *SQLiteStore) UpdateAddress(ctx context.Context, id, address string) error {
	return s.updateColumn(ctx, id, "address", address)
}

// UpdateName persists a speaker's display name.
func (s *SQLiteStore) UpdateName(ctx context.Context, id, name string) error {
	return s.updateColumn(ctx, id, "name", name)
}

// updateColumn updates a single column plus the updated_at timestamp.
// The column name is compile-time constant at every call site; values are
// always bound as parameters.
func (s *SQLiteStore) updateColumn(ctx context.Context, id, column, value string) error {
	query := fmt.Sprintf("UPDATE speakers SET %s = ?, updated_at = ? WHERE id = ?", column)

	result, err := s.db.ExecContext(ctx, query, value, formatTimestamp(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("updating speaker %s: %w", column, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSpeakerNotFound, id)
	}
	return nil
}

// Delete removes a speaker record by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM speakers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting speaker: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSpeakerNotFound, id)
	}
	return nil
}

// timestampFormat is RFC 3339 with sub-second precision, matching how
// SQLite stores TEXT timestamps throughout the schema.
const timestampFormat = time.RFC3339Nano

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
