package models

import (
	"time"

	"github.com/google/uuid"
)

// SplitMethod selects how a transaction's total is divided among its
// participants.
type SplitMethod string

const (
	// SplitEqual divides the total evenly; remainder cents go to the first
	// participants in deterministic (name, id) order.
	SplitEqual SplitMethod = "equal"

	// SplitPercentage divides by per-participant percentages summing to 100.
	SplitPercentage SplitMethod = "percentage"

	// SplitExact takes each participant's owed amount directly.
	SplitExact SplitMethod = "exact"

	// SplitAdjustment gives each participant a flat adjustment on top of an
	// equal division of the remainder.
	SplitAdjustment SplitMethod = "adjustment"

	// SplitShares divides proportionally to integer share counts.
	SplitShares SplitMethod = "shares"
)

// Valid reports whether m is one of the known split methods.
func (m SplitMethod) Valid() bool {
	switch m {
	case SplitEqual, SplitPercentage, SplitExact, SplitAdjustment, SplitShares:
		return true
	}
	return false
}

// Transaction is one shared expense.
type Transaction struct {
	SyncMeta

	Title string `json:"title"`

	// AmountMinor is the total in integer minor units of Currency.
	AmountMinor int64 `json:"amount_minor"`

	// Currency is the ISO 4217 code, e.g. "USD".
	Currency string `json:"currency"`

	Method SplitMethod `json:"method"`

	Date time.Time `json:"date"`

	// GroupID optionally associates the transaction with a group.
	GroupID *uuid.UUID `json:"group_id,omitempty"`

	Note string `json:"note,omitempty"`
}

// Split records one participant's owed share of a transaction.
//
// Invariant: for a given transaction, the owed amounts of its splits sum
// exactly to the transaction's AmountMinor.
type Split struct {
	SyncMeta

	TransactionID uuid.UUID `json:"transaction_id"`
	PersonID      uuid.UUID `json:"person_id"`

	// OwedMinor is this participant's share in minor units.
	OwedMinor int64 `json:"owed_minor"`

	// RawInput preserves what the user entered (a percentage, a share
	// count, an exact amount) so the allocation can be reconstructed when
	// the transaction is edited.
	RawInput string `json:"raw_input,omitempty"`
}

// Payer records one participant's paid amount toward a transaction.
//
// Invariant: the paid amounts of a transaction's payers sum exactly to its
// AmountMinor. A transaction with no Payer rows means the owner paid in full.
type Payer struct {
	SyncMeta

	TransactionID uuid.UUID `json:"transaction_id"`
	PersonID      uuid.UUID `json:"person_id"`

	// PaidMinor is the amount this person put in, in minor units.
	PaidMinor int64 `json:"paid_minor"`
}
