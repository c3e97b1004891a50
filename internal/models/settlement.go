package models

import (
	"time"

	"github.com/google/uuid"
)

// Settlement is a direct payment between two people that reduces a standing
// balance. Settlements are not split further.
type Settlement struct {
	SyncMeta

	// FromPersonID is who paid (the debtor settling up).
	FromPersonID uuid.UUID `json:"from_person_id"`

	// ToPersonID is who received the payment.
	ToPersonID uuid.UUID `json:"to_person_id"`

	// AmountMinor is the payment amount in minor units of Currency.
	AmountMinor int64 `json:"amount_minor"`

	Currency string `json:"currency"`

	Date time.Time `json:"date"`

	Note string `json:"note,omitempty"`
}
