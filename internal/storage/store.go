// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

// Store is the single write lane for the ledger. Direct user actions, the
// sync engine's pull application, and the migration service all mutate
// state through the same upsert-by-identifier primitives, so no code path
// can create duplicate rows for the same ID.
//
// Get methods return (nil, nil) when the row is absent. Changed methods
// return every row with updated_at strictly after the given watermark,
// tombstones included. Delete methods remove the row physically and are
// used when a remote tombstone is applied; a local soft delete is an upsert
// with DeletedAt set.
type Store interface {
	UpsertPerson(ctx context.Context, p *models.Person) error
	GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error)
	DeletePerson(ctx context.Context, id uuid.UUID) error
	ChangedPersons(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Person, error)
	ListPersons(ctx context.Context, owner uuid.UUID) ([]*models.Person, error)

	UpsertGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	DeleteGroup(ctx context.Context, id uuid.UUID) error
	ChangedGroups(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Group, error)

	UpsertGroupMember(ctx context.Context, m *models.GroupMember) error
	GetGroupMember(ctx context.Context, id uuid.UUID) (*models.GroupMember, error)
	DeleteGroupMember(ctx context.Context, id uuid.UUID) error
	ChangedGroupMembers(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.GroupMember, error)

	UpsertTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	ChangedTransactions(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Transaction, error)

	UpsertSplit(ctx context.Context, s *models.Split) error
	GetSplit(ctx context.Context, id uuid.UUID) (*models.Split, error)
	DeleteSplit(ctx context.Context, id uuid.UUID) error
	ChangedSplits(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Split, error)
	SplitsByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Split, error)

	UpsertPayer(ctx context.Context, p *models.Payer) error
	GetPayer(ctx context.Context, id uuid.UUID) (*models.Payer, error)
	DeletePayer(ctx context.Context, id uuid.UUID) error
	ChangedPayers(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Payer, error)
	PayersByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Payer, error)

	UpsertSettlement(ctx context.Context, s *models.Settlement) error
	GetSettlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	DeleteSettlement(ctx context.Context, id uuid.UUID) error
	ChangedSettlements(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Settlement, error)

	UpsertReminder(ctx context.Context, r *models.Reminder) error
	GetReminder(ctx context.Context, id uuid.UUID) (*models.Reminder, error)
	DeleteReminder(ctx context.Context, id uuid.UUID) error
	ChangedReminders(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Reminder, error)

	// TransactionsBetween returns live transactions under owner in which
	// both a and b participate, as a split or payer row.
	TransactionsBetween(ctx context.Context, owner, a, b uuid.UUID) ([]*models.Transaction, error)

	// SettlementsBetween returns live settlements under owner in either
	// direction between a and b.
	SettlementsBetween(ctx context.Context, owner, a, b uuid.UUID) ([]*models.Settlement, error)

	// Watermarks returns the push and pull watermark for an entity type.
	// Unsynced types report zero times.
	Watermarks(ctx context.Context, entity models.EntityType) (push, pull time.Time, err error)
	SetPushWatermark(ctx context.Context, entity models.EntityType, t time.Time) error
	SetPullWatermark(ctx context.Context, entity models.EntityType, t time.Time) error

	// Migration step markers enable safe resume after a partial failure.
	MigrationStepDone(ctx context.Context, step string) (bool, error)
	MarkMigrationStep(ctx context.Context, step string) error

	// RemapIdentity rewrites every reference to the old local-only self
	// identifier (person references and owner columns) to the account
	// identifier, and drops the superseded old self person row.
	RemapIdentity(ctx context.Context, oldID, newID uuid.UUID) error

	// EntityCounts reports row counts per entity type, tombstones included.
	EntityCounts(ctx context.Context) (map[models.EntityType]int, error)

	// PurgeTombstones physically removes tombstones older than the cutoff.
	// Server-side housekeeping, not part of the sync hot path.
	PurgeTombstones(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
