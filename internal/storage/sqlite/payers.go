package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

const payerColumns = "id, owner_id, transaction_id, person_id, paid_minor, updated_at, deleted_at"

// UpsertPayer inserts the payer or updates the row with the same ID.
func (s *Store) UpsertPayer(ctx context.Context, p *models.Payer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payers (id, owner_id, transaction_id, person_id, paid_minor, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   transaction_id = excluded.transaction_id,
		   person_id = excluded.person_id,
		   paid_minor = excluded.paid_minor,
		   updated_at = excluded.updated_at,
		   deleted_at = excluded.deleted_at`,
		p.ID, p.OwnerID, p.TransactionID, p.PersonID, p.PaidMinor,
		toNanos(p.UpdatedAt), nullNanos(p.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert payer: %w", err)
	}
	return nil
}

// GetPayer retrieves a payer by ID. Returns (nil, nil) when absent.
func (s *Store) GetPayer(ctx context.Context, id uuid.UUID) (*models.Payer, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+payerColumns+" FROM payers WHERE id = ?", id)
	p, err := scanPayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payer: %w", err)
	}
	return p, nil
}

// DeletePayer removes the row physically.
func (s *Store) DeletePayer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM payers WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete payer: %w", err)
	}
	return nil
}

// ChangedPayers returns rows changed after the watermark, tombstones included.
func (s *Store) ChangedPayers(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Payer, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+payerColumns+" FROM payers WHERE owner_id = ? AND updated_at > ? ORDER BY updated_at",
		owner, toNanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query changed payers: %w", err)
	}
	defer rows.Close()
	return collectPayers(rows)
}

// PayersByTransaction returns live payers of a transaction.
func (s *Store) PayersByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Payer, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+payerColumns+" FROM payers WHERE transaction_id = ? AND deleted_at IS NULL ORDER BY id",
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payers by transaction: %w", err)
	}
	defer rows.Close()
	return collectPayers(rows)
}

func scanPayer(row rowScanner) (*models.Payer, error) {
	p := &models.Payer{}
	var updated int64
	var deleted sql.NullInt64
	if err := row.Scan(&p.ID, &p.OwnerID, &p.TransactionID, &p.PersonID,
		&p.PaidMinor, &updated, &deleted); err != nil {
		return nil, err
	}
	p.UpdatedAt = fromNanos(updated)
	p.DeletedAt = nanosPtr(deleted)
	return p, nil
}

func collectPayers(rows *sql.Rows) ([]*models.Payer, error) {
	var payers []*models.Payer
	for rows.Next() {
		p, err := scanPayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payer: %w", err)
		}
		payers = append(payers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payers: %w", err)
	}
	return payers, nil
}
