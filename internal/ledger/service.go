// Package ledger is the local write path: it validates user input, runs the
// split and payer allocators, and funnels every mutation through the store's
// upsert primitives. It also exposes the synchronous balance query shared by
// the client and the server's verification endpoint.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/balance"
	"github.com/tallyapp/tally/internal/events"
	"github.com/tallyapp/tally/internal/models"
	"github.com/tallyapp/tally/internal/split"
	"github.com/tallyapp/tally/internal/storage"
)

// Notifier is the sync engine surface the service needs: a nudge after any
// local save. Kept as an interface so the service works without sync wired
// (tests, fully offline use).
type Notifier interface {
	NotifyLocalSave()
}

// Service owns local mutations for one account's dataset.
type Service struct {
	store storage.Store
	bus   *events.Bus
	calc  *split.Calculator
	sync  Notifier
	owner uuid.UUID
}

// New creates a Service. bus and sync may be nil.
func New(store storage.Store, bus *events.Bus, sync Notifier, owner uuid.UUID) *Service {
	return &Service{
		store: store,
		bus:   bus,
		calc:  split.NewCalculator(),
		sync:  sync,
		owner: owner,
	}
}

// TransactionInput is everything needed to create or edit a transaction.
type TransactionInput struct {
	// ID is zero for a new transaction.
	ID uuid.UUID

	Title       string
	AmountMinor int64
	Currency    string
	Method      models.SplitMethod
	Date        time.Time
	GroupID     *uuid.UUID
	Note        string

	Participants []split.Participant

	// Raw holds the per-participant inputs for the split method.
	Raw map[uuid.UUID]string

	// Payers is who paid; the zero value means the owner paid in full.
	Payers split.PayerSet
}

// SaveTransaction validates the input, computes splits and payer
// allocations, and writes the transaction with its child rows. Validation
// failures reject the save before any write; nothing is partially applied.
func (s *Service) SaveTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error) {
	if !in.Method.Valid() {
		return nil, fmt.Errorf("invalid split method %q", in.Method)
	}
	exponent := CurrencyExponent(in.Currency)

	switch in.Method {
	case models.SplitPercentage:
		if err := split.ValidatePercentages(in.Participants, in.Raw); err != nil {
			return nil, err
		}
	case models.SplitExact:
		if err := split.ValidateExactAmounts(in.AmountMinor, in.Participants, in.Raw, exponent); err != nil {
			return nil, err
		}
	}
	if err := split.ValidatePayerTotal(in.AmountMinor, in.Payers); err != nil {
		return nil, err
	}

	owed, err := s.calc.Compute(split.Input{
		TotalMinor:   in.AmountMinor,
		Method:       in.Method,
		Participants: in.Participants,
		Raw:          in.Raw,
		Exponent:     exponent,
	})
	if err != nil {
		return nil, err
	}
	paid := split.Allocate(in.AmountMinor, in.Payers, s.owner)

	isNew := in.ID == uuid.Nil
	tx := &models.Transaction{
		Title:       in.Title,
		AmountMinor: in.AmountMinor,
		Currency:    in.Currency,
		Method:      in.Method,
		Date:        in.Date,
		GroupID:     in.GroupID,
		Note:        in.Note,
	}
	tx.ID = in.ID
	if isNew {
		tx.ID = uuid.New()
	}
	tx.OwnerID = s.owner
	tx.Touch()

	if err := s.store.UpsertTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err := s.writeSplits(ctx, tx.ID, owed, in.Raw); err != nil {
		return nil, err
	}
	if err := s.writePayers(ctx, tx.ID, paid); err != nil {
		return nil, err
	}

	kind := events.ChangeUpdated
	if isNew {
		kind = events.ChangeCreated
	}
	s.publish(events.Event{Entity: models.EntityTransactions, Kind: kind, ID: tx.ID})
	s.notifySync()
	return tx, nil
}

// writeSplits reconciles the stored split rows with the newly computed
// allocation: update per person, insert newcomers, tombstone departures.
func (s *Service) writeSplits(ctx context.Context, txID uuid.UUID, owed map[uuid.UUID]int64, raw map[uuid.UUID]string) error {
	existing, err := s.store.SplitsByTransaction(ctx, txID)
	if err != nil {
		return err
	}
	byPerson := make(map[uuid.UUID]*models.Split, len(existing))
	for _, row := range existing {
		byPerson[row.PersonID] = row
	}

	for personID, amount := range owed {
		row, ok := byPerson[personID]
		if !ok {
			row = &models.Split{TransactionID: txID, PersonID: personID}
			row.ID = uuid.New()
			row.OwnerID = s.owner
		}
		delete(byPerson, personID)
		row.OwedMinor = amount
		row.RawInput = raw[personID]
		row.Touch()
		if err := s.store.UpsertSplit(ctx, row); err != nil {
			return err
		}
	}

	// Whoever is left no longer participates; tombstone their rows.
	for _, row := range byPerson {
		row.MarkDeleted()
		if err := s.store.UpsertSplit(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) writePayers(ctx context.Context, txID uuid.UUID, paid map[uuid.UUID]int64) error {
	existing, err := s.store.PayersByTransaction(ctx, txID)
	if err != nil {
		return err
	}
	byPerson := make(map[uuid.UUID]*models.Payer, len(existing))
	for _, row := range existing {
		byPerson[row.PersonID] = row
	}

	for personID, amount := range paid {
		row, ok := byPerson[personID]
		if !ok {
			row = &models.Payer{TransactionID: txID, PersonID: personID}
			row.ID = uuid.New()
			row.OwnerID = s.owner
		}
		delete(byPerson, personID)
		row.PaidMinor = amount
		row.Touch()
		if err := s.store.UpsertPayer(ctx, row); err != nil {
			return err
		}
	}

	for _, row := range byPerson {
		row.MarkDeleted()
		if err := s.store.UpsertPayer(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTransaction tombstones the transaction and its child rows so the
// deletion propagates to other devices.
func (s *Service) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if tx == nil {
		return fmt.Errorf("transaction not found: %s", id)
	}

	splits, err := s.store.SplitsByTransaction(ctx, id)
	if err != nil {
		return err
	}
	for _, row := range splits {
		row.MarkDeleted()
		if err := s.store.UpsertSplit(ctx, row); err != nil {
			return err
		}
	}
	payers, err := s.store.PayersByTransaction(ctx, id)
	if err != nil {
		return err
	}
	for _, row := range payers {
		row.MarkDeleted()
		if err := s.store.UpsertPayer(ctx, row); err != nil {
			return err
		}
	}

	tx.MarkDeleted()
	if err := s.store.UpsertTransaction(ctx, tx); err != nil {
		return err
	}

	s.publish(events.Event{Entity: models.EntityTransactions, Kind: events.ChangeDeleted, ID: id})
	s.notifySync()
	return nil
}

// SavePerson creates or updates a person.
func (s *Service) SavePerson(ctx context.Context, p *models.Person) error {
	isNew := p.ID == uuid.Nil
	if isNew {
		p.ID = uuid.New()
	}
	p.OwnerID = s.owner
	p.Touch()
	if err := s.store.UpsertPerson(ctx, p); err != nil {
		return err
	}

	kind := events.ChangeUpdated
	if isNew {
		kind = events.ChangeCreated
	}
	s.publish(events.Event{Entity: models.EntityPersons, Kind: kind, ID: p.ID})
	s.notifySync()
	return nil
}

// SaveSettlement records a direct payment between two people.
func (s *Service) SaveSettlement(ctx context.Context, settlement *models.Settlement) error {
	if settlement.AmountMinor <= 0 {
		return fmt.Errorf("settlement amount must be positive, got %d", settlement.AmountMinor)
	}
	if settlement.FromPersonID == settlement.ToPersonID {
		return fmt.Errorf("settlement must be between two different people")
	}

	isNew := settlement.ID == uuid.Nil
	if isNew {
		settlement.ID = uuid.New()
	}
	settlement.OwnerID = s.owner
	settlement.Touch()
	if err := s.store.UpsertSettlement(ctx, settlement); err != nil {
		return err
	}

	kind := events.ChangeUpdated
	if isNew {
		kind = events.ChangeCreated
	}
	s.publish(events.Event{Entity: models.EntitySettlements, Kind: kind, ID: settlement.ID})
	s.notifySync()
	return nil
}

// BalanceWith reports the owner's pairwise balance against a person.
func (s *Service) BalanceWith(ctx context.Context, personID uuid.UUID) (*balance.Report, error) {
	return BalanceBetween(ctx, s.store, s.owner, s.owner, personID)
}

func (s *Service) publish(event events.Event) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}

func (s *Service) notifySync() {
	if s.sync != nil {
		s.sync.NotifyLocalSave()
	} else {
		slog.Debug("no sync engine wired, save stays local")
	}
}

// BalanceBetween computes the pairwise balance report between persons a and
// b under one owner. The server's verification endpoint calls this exact
// function over the synced data, so client and server results are
// interchangeable for identical inputs.
func BalanceBetween(ctx context.Context, store storage.Store, owner, a, b uuid.UUID) (*balance.Report, error) {
	transactions, err := store.TransactionsBetween(ctx, owner, a, b)
	if err != nil {
		return nil, err
	}

	data := make([]balance.TransactionData, 0, len(transactions))
	for _, tx := range transactions {
		splits, err := store.SplitsByTransaction(ctx, tx.ID)
		if err != nil {
			return nil, err
		}
		payers, err := store.PayersByTransaction(ctx, tx.ID)
		if err != nil {
			return nil, err
		}
		data = append(data, balance.TransactionData{Transaction: tx, Splits: splits, Payers: payers})
	}

	settlements, err := store.SettlementsBetween(ctx, owner, a, b)
	if err != nil {
		return nil, err
	}

	buckets := balance.Pairwise(a, b, data, settlements)
	report := balance.BuildReport(buckets)
	return &report, nil
}

// CurrencyExponent returns the minor-unit digit count for an ISO currency
// code, defaulting to 2 for unknown codes.
func CurrencyExponent(code string) int32 {
	if c := money.GetCurrency(code); c != nil {
		return int32(c.Fraction)
	}
	return 2
}
