package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

const personColumns = "id, owner_id, name, archived, photo_path, photo_url, updated_at, deleted_at"

// UpsertPerson inserts the person or updates the existing row with the same ID.
func (s *Store) UpsertPerson(ctx context.Context, p *models.Person) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persons (id, owner_id, name, archived, photo_path, photo_url, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   name = excluded.name,
		   archived = excluded.archived,
		   photo_path = excluded.photo_path,
		   photo_url = excluded.photo_url,
		   updated_at = excluded.updated_at,
		   deleted_at = excluded.deleted_at`,
		p.ID, p.OwnerID, p.Name, p.Archived, p.PhotoPath, p.PhotoURL,
		toNanos(p.UpdatedAt), nullNanos(p.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert person: %w", err)
	}
	return nil
}

// GetPerson retrieves a person by ID. Returns (nil, nil) when absent.
func (s *Store) GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+personColumns+" FROM persons WHERE id = ?", id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

// DeletePerson removes the row physically. Used when a remote tombstone is
// applied; local deletes tombstone via UpsertPerson instead.
func (s *Store) DeletePerson(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	return nil
}

// ChangedPersons returns rows changed after the watermark, tombstones included.
func (s *Store) ChangedPersons(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+personColumns+" FROM persons WHERE owner_id = ? AND updated_at > ? ORDER BY updated_at",
		owner, toNanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query changed persons: %w", err)
	}
	defer rows.Close()
	return collectPersons(rows)
}

// ListPersons returns live persons for the owner, ordered by name.
func (s *Store) ListPersons(ctx context.Context, owner uuid.UUID) ([]*models.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+personColumns+" FROM persons WHERE owner_id = ? AND deleted_at IS NULL ORDER BY name, id",
		owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()
	return collectPersons(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	p := &models.Person{}
	var updated int64
	var deleted sql.NullInt64
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Archived,
		&p.PhotoPath, &p.PhotoURL, &updated, &deleted); err != nil {
		return nil, err
	}
	p.UpdatedAt = fromNanos(updated)
	p.DeletedAt = nanosPtr(deleted)
	return p, nil
}

func collectPersons(rows *sql.Rows) ([]*models.Person, error) {
	var persons []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate persons: %w", err)
	}
	return persons, nil
}
