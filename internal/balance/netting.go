// Package balance derives pairwise balances from transactions and
// settlements.
//
// The algorithm runs in three layers: per-transaction net positions
// (paid minus owed), proportional allocation of each debtor's shortfall
// across that transaction's creditors, and aggregation per currency across
// all transactions two people share, adjusted by direct settlements.
//
// The same package backs both the client-side ledger and the server's
// verification endpoint, so the two are interchangeable by construction.
package balance

import (
	"math"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

// settledEpsilonMinor is the bucket-drop threshold: anything smaller than
// one minor unit in magnitude is floating-point noise, not a debt.
const settledEpsilonMinor = 1.0

// TransactionData bundles a transaction with its split and payer rows.
// Tombstoned rows must be filtered out before netting.
type TransactionData struct {
	Transaction *models.Transaction
	Splits      []*models.Split
	Payers      []*models.Payer
}

// NetPositions computes paid-minus-owed per person for one transaction, in
// minor units. A positive position means the person is a creditor within
// this transaction; negative means debtor.
func NetPositions(data TransactionData) map[uuid.UUID]int64 {
	net := make(map[uuid.UUID]int64)
	for _, p := range data.Payers {
		net[p.PersonID] += p.PaidMinor
	}
	for _, s := range data.Splits {
		net[s.PersonID] -= s.OwedMinor
	}
	return net
}

// Pairwise computes the signed balance between two people per currency, in
// minor units. Positive means b owes a; the result is antisymmetric:
// Pairwise(a, b, ...) is the negation of Pairwise(b, a, ...).
//
// For each transaction both people participate in, each debtor's shortfall
// is distributed proportionally among all of that transaction's creditors,
// not dumped entirely onto one of them. Direct settlements between the pair
// are then subtracted from the side they reduce. Buckets smaller than one
// minor unit are dropped.
func Pairwise(a, b uuid.UUID, transactions []TransactionData, settlements []*models.Settlement) map[string]float64 {
	buckets := make(map[string]float64)

	for _, data := range transactions {
		net := NetPositions(data)
		netA, okA := net[a]
		netB, okB := net[b]
		if !okA || !okB {
			continue
		}

		var totalCredit int64
		for _, n := range net {
			if n > 0 {
				totalCredit += n
			}
		}
		// Fully settled within itself: nothing to attribute to any pair.
		if totalCredit <= 0 {
			continue
		}

		currency := data.Transaction.Currency
		switch {
		case netA > 0 && netB < 0:
			// b's debt flows to a in proportion to a's share of the credit.
			buckets[currency] += float64(-netB) * float64(netA) / float64(totalCredit)
		case netA < 0 && netB > 0:
			buckets[currency] -= float64(-netA) * float64(netB) / float64(totalCredit)
		}
	}

	for _, s := range settlements {
		if s.Deleted() {
			continue
		}
		switch {
		case s.FromPersonID == b && s.ToPersonID == a:
			buckets[s.Currency] -= float64(s.AmountMinor)
		case s.FromPersonID == a && s.ToPersonID == b:
			buckets[s.Currency] += float64(s.AmountMinor)
		}
	}

	for currency, amount := range buckets {
		if math.Abs(amount) < settledEpsilonMinor {
			delete(buckets, currency)
		}
	}
	return buckets
}
