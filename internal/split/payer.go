package split

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrPayerSumMismatch is returned by ValidatePayerTotal when explicit payer
// amounts do not sum to the transaction total. This is a hard save-time
// precondition; the allocator never auto-corrects entered amounts.
var ErrPayerSumMismatch = errors.New("payer amounts do not sum to the total")

// PayerInput is one explicitly entered payer amount.
type PayerInput struct {
	PersonID  uuid.UUID
	PaidMinor int64
}

// PayerSet is a tagged variant for who paid a transaction: either the
// implied default ("self pays 100%") or an explicit set of payers. Emptiness
// is never used as meaning; construct via ImpliedSelf or ExplicitPayers.
type PayerSet struct {
	explicit bool
	entries  []PayerInput
}

// ImpliedSelf returns the default payer set: the owner paid in full.
func ImpliedSelf() PayerSet {
	return PayerSet{}
}

// ExplicitPayers returns a payer set with entered amounts. An empty list
// degrades to the implied-self default.
func ExplicitPayers(entries []PayerInput) PayerSet {
	if len(entries) == 0 {
		return ImpliedSelf()
	}
	return PayerSet{explicit: true, entries: entries}
}

// Explicit returns the entered payers and whether the set is explicit.
func (s PayerSet) Explicit() ([]PayerInput, bool) {
	return s.entries, s.explicit
}

// Allocate returns each person's paid amount in minor units.
//
// No explicit payers means self pays 100%. Exactly one explicit payer is
// auto-filled with the full total regardless of the entered amount. Two or
// more payers use their entered amounts verbatim; the caller must have
// validated the sum with ValidatePayerTotal before saving.
func Allocate(totalMinor int64, set PayerSet, selfID uuid.UUID) map[uuid.UUID]int64 {
	entries, explicit := set.Explicit()
	if !explicit {
		return map[uuid.UUID]int64{selfID: totalMinor}
	}
	if len(entries) == 1 {
		return map[uuid.UUID]int64{entries[0].PersonID: totalMinor}
	}

	paid := make(map[uuid.UUID]int64, len(entries))
	for _, e := range entries {
		paid[e.PersonID] += e.PaidMinor
	}
	return paid
}

// ValidatePayerTotal checks the save-time precondition for multi-payer
// transactions: entered amounts must sum exactly to the total. Sets with
// fewer than two explicit payers are always valid because the allocator
// fills them in itself.
func ValidatePayerTotal(totalMinor int64, set PayerSet) error {
	entries, explicit := set.Explicit()
	if !explicit || len(entries) < 2 {
		return nil
	}
	var sum int64
	for _, e := range entries {
		sum += e.PaidMinor
	}
	if sum != totalMinor {
		return fmt.Errorf("%w: got %d, want %d", ErrPayerSumMismatch, sum, totalMinor)
	}
	return nil
}
