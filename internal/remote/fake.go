package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/balance"
	"github.com/tallyapp/tally/internal/models"
)

// Fake is an in-memory Client for tests. It mimics the server's semantics:
// upserts are keyed on ID, pulls return rows with updated_at strictly after
// the given watermark, tombstones included.
type Fake struct {
	mu   sync.Mutex
	rows map[models.EntityType]map[uuid.UUID]any

	// FailPull and FailPush inject an error for an entity type. The
	// operation fails without touching state.
	FailPull map[models.EntityType]error
	FailPush map[models.EntityType]error

	// Assets records uploaded blobs by filename.
	Assets map[string][]byte

	// BalanceReport is returned by VerifyBalance when set.
	BalanceReport *balance.Report

	// OnPull, when set, runs at the start of every pull before any state
	// is read. Tests use it to observe or hold a cycle open. Set it before
	// the fake is shared across goroutines.
	OnPull func(entity models.EntityType)
}

// NewFake creates an empty fake remote.
func NewFake() *Fake {
	return &Fake{
		rows:     make(map[models.EntityType]map[uuid.UUID]any),
		FailPull: make(map[models.EntityType]error),
		FailPush: make(map[models.EntityType]error),
		Assets:   make(map[string][]byte),
	}
}

var _ Client = (*Fake)(nil)

// Count returns the number of stored rows for an entity type.
func (f *Fake) Count(entity models.EntityType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[entity])
}

type fakeRecord interface {
	Meta() models.SyncMeta
}

func fakePull[T fakeRecord](f *Fake, entity models.EntityType, since time.Time) ([]T, error) {
	// The hook runs outside the lock so it may block without wedging
	// concurrent pulls for other entity types.
	if f.OnPull != nil {
		f.OnPull(entity)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailPull[entity]; err != nil {
		return nil, err
	}

	var out []T
	for _, row := range f.rows[entity] {
		typed, ok := row.(T)
		if !ok {
			return nil, fmt.Errorf("row type mismatch for %s", entity)
		}
		if typed.Meta().UpdatedAt.After(since) {
			out = append(out, typed)
		}
	}
	return out, nil
}

func fakePush[T fakeRecord](f *Fake, entity models.EntityType, rows []T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailPush[entity]; err != nil {
		return err
	}

	bucket := f.rows[entity]
	if bucket == nil {
		bucket = make(map[uuid.UUID]any)
		f.rows[entity] = bucket
	}
	for _, row := range rows {
		bucket[row.Meta().ID] = row
	}
	return nil
}

func (f *Fake) PullPersons(ctx context.Context, since time.Time) ([]*models.Person, error) {
	return fakePull[*models.Person](f, models.EntityPersons, since)
}

func (f *Fake) UpsertPersons(ctx context.Context, rows []*models.Person) error {
	return fakePush(f, models.EntityPersons, rows)
}

func (f *Fake) PullGroups(ctx context.Context, since time.Time) ([]*models.Group, error) {
	return fakePull[*models.Group](f, models.EntityGroups, since)
}

func (f *Fake) UpsertGroups(ctx context.Context, rows []*models.Group) error {
	return fakePush(f, models.EntityGroups, rows)
}

func (f *Fake) PullGroupMembers(ctx context.Context, since time.Time) ([]*models.GroupMember, error) {
	return fakePull[*models.GroupMember](f, models.EntityGroupMembers, since)
}

func (f *Fake) UpsertGroupMembers(ctx context.Context, rows []*models.GroupMember) error {
	return fakePush(f, models.EntityGroupMembers, rows)
}

func (f *Fake) PullTransactions(ctx context.Context, since time.Time) ([]*models.Transaction, error) {
	return fakePull[*models.Transaction](f, models.EntityTransactions, since)
}

func (f *Fake) UpsertTransactions(ctx context.Context, rows []*models.Transaction) error {
	return fakePush(f, models.EntityTransactions, rows)
}

func (f *Fake) PullSplits(ctx context.Context, since time.Time) ([]*models.Split, error) {
	return fakePull[*models.Split](f, models.EntitySplits, since)
}

func (f *Fake) UpsertSplits(ctx context.Context, rows []*models.Split) error {
	return fakePush(f, models.EntitySplits, rows)
}

func (f *Fake) PullPayers(ctx context.Context, since time.Time) ([]*models.Payer, error) {
	return fakePull[*models.Payer](f, models.EntityPayers, since)
}

func (f *Fake) UpsertPayers(ctx context.Context, rows []*models.Payer) error {
	return fakePush(f, models.EntityPayers, rows)
}

func (f *Fake) PullSettlements(ctx context.Context, since time.Time) ([]*models.Settlement, error) {
	return fakePull[*models.Settlement](f, models.EntitySettlements, since)
}

func (f *Fake) UpsertSettlements(ctx context.Context, rows []*models.Settlement) error {
	return fakePush(f, models.EntitySettlements, rows)
}

func (f *Fake) PullReminders(ctx context.Context, since time.Time) ([]*models.Reminder, error) {
	return fakePull[*models.Reminder](f, models.EntityReminders, since)
}

func (f *Fake) UpsertReminders(ctx context.Context, rows []*models.Reminder) error {
	return fakePush(f, models.EntityReminders, rows)
}

func (f *Fake) UploadAsset(ctx context.Context, filename string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Assets[filename] = data
	return "/assets/" + filename, nil
}

func (f *Fake) VerifyBalance(ctx context.Context, personID uuid.UUID) (*balance.Report, error) {
	if f.BalanceReport != nil {
		return f.BalanceReport, nil
	}
	return &balance.Report{Balances: map[string]float64{}, IsSettled: true}, nil
}
