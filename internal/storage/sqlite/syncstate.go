package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

// Watermarks returns the push and pull watermark for an entity type. A type
// that has never synced reports zero times.
func (s *Store) Watermarks(ctx context.Context, entity models.EntityType) (time.Time, time.Time, error) {
	var push, pull int64
	err := s.db.QueryRowContext(ctx,
		"SELECT push_watermark, pull_watermark FROM sync_state WHERE entity_type = ?",
		string(entity),
	).Scan(&push, &pull)
	if err == sql.ErrNoRows {
		return time.Time{}, time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to get watermarks: %w", err)
	}
	return watermarkTime(push), watermarkTime(pull), nil
}

// SetPushWatermark advances the push watermark for an entity type.
func (s *Store) SetPushWatermark(ctx context.Context, entity models.EntityType, t time.Time) error {
	return s.setWatermark(ctx, entity, "push_watermark", t)
}

// SetPullWatermark advances the pull watermark for an entity type.
func (s *Store) SetPullWatermark(ctx context.Context, entity models.EntityType, t time.Time) error {
	return s.setWatermark(ctx, entity, "pull_watermark", t)
}

func (s *Store) setWatermark(ctx context.Context, entity models.EntityType, column string, t time.Time) error {
	// column is one of two compile-time constants, never user input.
	query := fmt.Sprintf(
		`INSERT INTO sync_state (entity_type, %s) VALUES (?, ?)
		 ON CONFLICT(entity_type) DO UPDATE SET %s = excluded.%s`,
		column, column, column)
	if _, err := s.db.ExecContext(ctx, query, string(entity), toNanos(t)); err != nil {
		return fmt.Errorf("failed to set %s: %w", column, err)
	}
	return nil
}

// watermarkTime maps the zero sentinel back to the zero time so "never
// synced" round-trips cleanly.
func watermarkTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return fromNanos(n)
}

// MigrationStepDone reports whether a migration step has completed.
func (s *Store) MigrationStepDone(ctx context.Context, step string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM migration_state WHERE step = ?", step).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check migration step: %w", err)
	}
	return true, nil
}

// MarkMigrationStep records a migration step as completed. Idempotent.
func (s *Store) MarkMigrationStep(ctx context.Context, step string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO migration_state (step, completed_at) VALUES (?, ?)
		 ON CONFLICT(step) DO NOTHING`,
		step, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to mark migration step: %w", err)
	}
	return nil
}

// entityTables maps entity types to their table names. The string values
// match, but going through the map keeps raw SQL identifiers out of
// call sites.
var entityTables = map[models.EntityType]string{
	models.EntityPersons:      "persons",
	models.EntityGroups:       "groups",
	models.EntityGroupMembers: "group_members",
	models.EntityTransactions: "transactions",
	models.EntitySplits:       "splits",
	models.EntityPayers:       "payers",
	models.EntitySettlements:  "settlements",
	models.EntityReminders:    "reminders",
}

// RemapIdentity rewrites every reference to the old local-only self
// identifier to the account identifier, in one transaction. The old self
// person row is dropped; the migration service has already created the new
// one under the account ID.
func (s *Store) RemapIdentity(ctx context.Context, oldID, newID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		"UPDATE splits SET person_id = ? WHERE person_id = ?",
		"UPDATE payers SET person_id = ? WHERE person_id = ?",
		"UPDATE settlements SET from_person_id = ? WHERE from_person_id = ?",
		"UPDATE settlements SET to_person_id = ? WHERE to_person_id = ?",
		"UPDATE reminders SET person_id = ? WHERE person_id = ?",
		"UPDATE group_members SET person_id = ? WHERE person_id = ?",
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, newID, oldID); err != nil {
			return fmt.Errorf("failed to remap person reference: %w", err)
		}
	}

	for _, table := range entityTables {
		stmt := fmt.Sprintf("UPDATE %s SET owner_id = ? WHERE owner_id = ?", table)
		if _, err := tx.ExecContext(ctx, stmt, newID, oldID); err != nil {
			return fmt.Errorf("failed to remap owner on %s: %w", table, err)
		}
	}

	// The old self person row is superseded by the new account-keyed one.
	if _, err := tx.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", oldID); err != nil {
		return fmt.Errorf("failed to drop old self person: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit identity remap: %w", err)
	}
	return nil
}

// EntityCounts reports row counts per entity type, tombstones included.
func (s *Store) EntityCounts(ctx context.Context) (map[models.EntityType]int, error) {
	counts := make(map[models.EntityType]int, len(entityTables))
	for entity, table := range entityTables {
		var n int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[entity] = n
	}
	return counts, nil
}

// PurgeTombstones physically removes tombstones older than the cutoff.
func (s *Store) PurgeTombstones(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	cutoff := toNanos(before)
	for _, table := range entityTables {
		query := fmt.Sprintf("DELETE FROM %s WHERE deleted_at IS NOT NULL AND deleted_at < ?", table)
		result, err := s.db.ExecContext(ctx, query, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to purge tombstones from %s: %w", table, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}
