package models

import (
	"time"

	"github.com/google/uuid"
)

// Reminder is a scheduled nudge to settle up with a person.
type Reminder struct {
	SyncMeta

	PersonID uuid.UUID `json:"person_id"`

	Message string `json:"message"`

	DueDate time.Time `json:"due_date"`
}
