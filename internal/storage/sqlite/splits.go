package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

const splitColumns = "id, owner_id, transaction_id, person_id, owed_minor, raw_input, updated_at, deleted_at"

// UpsertSplit inserts the split or updates the row with the same ID.
func (s *Store) UpsertSplit(ctx context.Context, split *models.Split) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO splits (id, owner_id, transaction_id, person_id, owed_minor, raw_input, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   transaction_id = excluded.transaction_id,
		   person_id = excluded.person_id,
		   owed_minor = excluded.owed_minor,
		   raw_input = excluded.raw_input,
		   updated_at = excluded.updated_at,
		   deleted_at = excluded.deleted_at`,
		split.ID, split.OwnerID, split.TransactionID, split.PersonID,
		split.OwedMinor, split.RawInput, toNanos(split.UpdatedAt), nullNanos(split.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert split: %w", err)
	}
	return nil
}

// GetSplit retrieves a split by ID. Returns (nil, nil) when absent.
func (s *Store) GetSplit(ctx context.Context, id uuid.UUID) (*models.Split, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+splitColumns+" FROM splits WHERE id = ?", id)
	split, err := scanSplit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	return split, nil
}

// DeleteSplit removes the row physically.
func (s *Store) DeleteSplit(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM splits WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete split: %w", err)
	}
	return nil
}

// ChangedSplits returns rows changed after the watermark, tombstones included.
func (s *Store) ChangedSplits(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Split, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+splitColumns+" FROM splits WHERE owner_id = ? AND updated_at > ? ORDER BY updated_at",
		owner, toNanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query changed splits: %w", err)
	}
	defer rows.Close()
	return collectSplits(rows)
}

// SplitsByTransaction returns live splits of a transaction.
func (s *Store) SplitsByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Split, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+splitColumns+" FROM splits WHERE transaction_id = ? AND deleted_at IS NULL ORDER BY id",
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits by transaction: %w", err)
	}
	defer rows.Close()
	return collectSplits(rows)
}

func scanSplit(row rowScanner) (*models.Split, error) {
	split := &models.Split{}
	var updated int64
	var deleted sql.NullInt64
	if err := row.Scan(&split.ID, &split.OwnerID, &split.TransactionID, &split.PersonID,
		&split.OwedMinor, &split.RawInput, &updated, &deleted); err != nil {
		return nil, err
	}
	split.UpdatedAt = fromNanos(updated)
	split.DeletedAt = nanosPtr(deleted)
	return split, nil
}

func collectSplits(rows *sql.Rows) ([]*models.Split, error) {
	var splits []*models.Split
	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}
