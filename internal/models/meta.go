package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncMeta is embedded in every top-level entity. It carries the sync
// bookkeeping fields shared by all entity types.
type SyncMeta struct {
	// ID is the stable primary key. Upserts are keyed on it, on both the
	// local and the remote store.
	ID uuid.UUID `json:"id"`

	// OwnerID is the account this row is isolated under.
	OwnerID uuid.UUID `json:"owner_id"`

	// UpdatedAt is bumped on every local mutation and is the sole input to
	// conflict resolution.
	UpdatedAt time.Time `json:"updated_at"`

	// DeletedAt, when non-nil, marks the row as a tombstone: logically gone
	// but retained so the deletion can propagate to other devices.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Meta returns a copy of the sync bookkeeping fields. Entities embedding
// SyncMeta satisfy the sync engine's record interface through this method.
func (m *SyncMeta) Meta() SyncMeta {
	return *m
}

// Deleted reports whether the entity is tombstoned.
func (m SyncMeta) Deleted() bool {
	return m.DeletedAt != nil
}

// Touch bumps UpdatedAt to now. Called on every local mutation.
func (m *SyncMeta) Touch() {
	m.UpdatedAt = time.Now().UTC()
}

// MarkDeleted tombstones the entity and bumps UpdatedAt so the tombstone
// propagates like any other change.
func (m *SyncMeta) MarkDeleted() {
	now := time.Now().UTC()
	m.DeletedAt = &now
	m.UpdatedAt = now
}
