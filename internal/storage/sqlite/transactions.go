package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

const transactionColumns = "id, owner_id, title, amount_minor, currency, method, date, group_id, note, updated_at, deleted_at"

// UpsertTransaction inserts the transaction or updates the row with the same ID.
func (s *Store) UpsertTransaction(ctx context.Context, t *models.Transaction) error {
	var groupID any
	if t.GroupID != nil {
		groupID = *t.GroupID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, title, amount_minor, currency, method, date, group_id, note, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   title = excluded.title,
		   amount_minor = excluded.amount_minor,
		   currency = excluded.currency,
		   method = excluded.method,
		   date = excluded.date,
		   group_id = excluded.group_id,
		   note = excluded.note,
		   updated_at = excluded.updated_at,
		   deleted_at = excluded.deleted_at`,
		t.ID, t.OwnerID, t.Title, t.AmountMinor, t.Currency, string(t.Method),
		t.Date.Unix(), groupID, t.Note, toNanos(t.UpdatedAt), nullNanos(t.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID. Returns (nil, nil) when absent.
func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// DeleteTransaction removes the row physically; split and payer child rows
// cascade away with it.
func (s *Store) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

// ChangedTransactions returns rows changed after the watermark, tombstones included.
func (s *Store) ChangedTransactions(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE owner_id = ? AND updated_at > ? ORDER BY updated_at",
		owner, toNanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query changed transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// TransactionsBetween returns live transactions under owner in which both a
// and b participate via a live split or payer row.
func (s *Store) TransactionsBetween(ctx context.Context, owner, a, b uuid.UUID) ([]*models.Transaction, error) {
	const query = `
		SELECT ` + transactionColumns + ` FROM transactions t
		WHERE t.owner_id = ? AND t.deleted_at IS NULL
		AND EXISTS (
			SELECT 1 FROM splits s WHERE s.transaction_id = t.id AND s.person_id = ? AND s.deleted_at IS NULL
			UNION
			SELECT 1 FROM payers p WHERE p.transaction_id = t.id AND p.person_id = ? AND p.deleted_at IS NULL
		)
		AND EXISTS (
			SELECT 1 FROM splits s WHERE s.transaction_id = t.id AND s.person_id = ? AND s.deleted_at IS NULL
			UNION
			SELECT 1 FROM payers p WHERE p.transaction_id = t.id AND p.person_id = ? AND p.deleted_at IS NULL
		)
		ORDER BY t.date, t.id`
	rows, err := s.db.QueryContext(ctx, query, owner, a, a, b, b)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions between persons: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	var method string
	var date int64
	var groupID uuid.NullUUID
	var updated int64
	var deleted sql.NullInt64
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.AmountMinor, &t.Currency,
		&method, &date, &groupID, &t.Note, &updated, &deleted); err != nil {
		return nil, err
	}
	t.Method = models.SplitMethod(method)
	t.Date = time.Unix(date, 0).UTC()
	if groupID.Valid {
		id := groupID.UUID
		t.GroupID = &id
	}
	t.UpdatedAt = fromNanos(updated)
	t.DeletedAt = nanosPtr(deleted)
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}
