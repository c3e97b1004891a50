package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

const settlementColumns = "id, owner_id, from_person_id, to_person_id, amount_minor, currency, date, note, updated_at, deleted_at"

// UpsertSettlement inserts the settlement or updates the row with the same ID.
func (s *Store) UpsertSettlement(ctx context.Context, settlement *models.Settlement) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settlements (id, owner_id, from_person_id, to_person_id, amount_minor, currency, date, note, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   from_person_id = excluded.from_person_id,
		   to_person_id = excluded.to_person_id,
		   amount_minor = excluded.amount_minor,
		   currency = excluded.currency,
		   date = excluded.date,
		   note = excluded.note,
		   updated_at = excluded.updated_at,
		   deleted_at = excluded.deleted_at`,
		settlement.ID, settlement.OwnerID, settlement.FromPersonID, settlement.ToPersonID,
		settlement.AmountMinor, settlement.Currency, settlement.Date.Unix(), settlement.Note,
		toNanos(settlement.UpdatedAt), nullNanos(settlement.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert settlement: %w", err)
	}
	return nil
}

// GetSettlement retrieves a settlement by ID. Returns (nil, nil) when absent.
func (s *Store) GetSettlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE id = ?", id)
	settlement, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// DeleteSettlement removes the row physically.
func (s *Store) DeleteSettlement(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settlements WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	return nil
}

// ChangedSettlements returns rows changed after the watermark, tombstones included.
func (s *Store) ChangedSettlements(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE owner_id = ? AND updated_at > ? ORDER BY updated_at",
		owner, toNanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query changed settlements: %w", err)
	}
	defer rows.Close()
	return collectSettlements(rows)
}

// SettlementsBetween returns live settlements in either direction between a
// and b under the owner.
func (s *Store) SettlementsBetween(ctx context.Context, owner, a, b uuid.UUID) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+settlementColumns+` FROM settlements
		 WHERE owner_id = ? AND deleted_at IS NULL
		 AND ((from_person_id = ? AND to_person_id = ?) OR (from_person_id = ? AND to_person_id = ?))
		 ORDER BY date, id`,
		owner, a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements between persons: %w", err)
	}
	defer rows.Close()
	return collectSettlements(rows)
}

func scanSettlement(row rowScanner) (*models.Settlement, error) {
	settlement := &models.Settlement{}
	var date int64
	var updated int64
	var deleted sql.NullInt64
	if err := row.Scan(&settlement.ID, &settlement.OwnerID, &settlement.FromPersonID,
		&settlement.ToPersonID, &settlement.AmountMinor, &settlement.Currency,
		&date, &settlement.Note, &updated, &deleted); err != nil {
		return nil, err
	}
	settlement.Date = time.Unix(date, 0).UTC()
	settlement.UpdatedAt = fromNanos(updated)
	settlement.DeletedAt = nanosPtr(deleted)
	return settlement, nil
}

func collectSettlements(rows *sql.Rows) ([]*models.Settlement, error) {
	var settlements []*models.Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}
