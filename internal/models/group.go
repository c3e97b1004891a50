package models

import "github.com/google/uuid"

// Group is a reusable participant list that transactions can be filed under.
type Group struct {
	SyncMeta

	Name string `json:"name"`
}

// GroupMember links one person into a group. Memberships sync as their own
// entity type so a membership change propagates without rewriting the group.
type GroupMember struct {
	SyncMeta

	GroupID  uuid.UUID `json:"group_id"`
	PersonID uuid.UUID `json:"person_id"`
}
