package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

const reminderColumns = "id, owner_id, person_id, message, due_date, updated_at, deleted_at"

// UpsertReminder inserts the reminder or updates the row with the same ID.
func (s *Store) UpsertReminder(ctx context.Context, r *models.Reminder) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, owner_id, person_id, message, due_date, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   person_id = excluded.person_id,
		   message = excluded.message,
		   due_date = excluded.due_date,
		   updated_at = excluded.updated_at,
		   deleted_at = excluded.deleted_at`,
		r.ID, r.OwnerID, r.PersonID, r.Message, r.DueDate.Unix(),
		toNanos(r.UpdatedAt), nullNanos(r.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reminder: %w", err)
	}
	return nil
}

// GetReminder retrieves a reminder by ID. Returns (nil, nil) when absent.
func (s *Store) GetReminder(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	r := &models.Reminder{}
	var dueDate, updated int64
	var deleted sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT "+reminderColumns+" FROM reminders WHERE id = ?", id,
	).Scan(&r.ID, &r.OwnerID, &r.PersonID, &r.Message, &dueDate, &updated, &deleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	r.DueDate = time.Unix(dueDate, 0).UTC()
	r.UpdatedAt = fromNanos(updated)
	r.DeletedAt = nanosPtr(deleted)
	return r, nil
}

// DeleteReminder removes the row physically.
func (s *Store) DeleteReminder(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM reminders WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return nil
}

// ChangedReminders returns rows changed after the watermark, tombstones included.
func (s *Store) ChangedReminders(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+reminderColumns+" FROM reminders WHERE owner_id = ? AND updated_at > ? ORDER BY updated_at",
		owner, toNanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query changed reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		r := &models.Reminder{}
		var dueDate, updated int64
		var deleted sql.NullInt64
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.PersonID, &r.Message, &dueDate, &updated, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		r.DueDate = time.Unix(dueDate, 0).UTC()
		r.UpdatedAt = fromNanos(updated)
		r.DeletedAt = nanosPtr(deleted)
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminders: %w", err)
	}
	return reminders, nil
}
