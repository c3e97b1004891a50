package models

// EntityType names one syncable entity type. The string value doubles as
// the table name locally and the path segment on the sync API.
type EntityType string

const (
	EntityPersons      EntityType = "persons"
	EntityGroups       EntityType = "groups"
	EntityGroupMembers EntityType = "group_members"
	EntityTransactions EntityType = "transactions"
	EntitySplits       EntityType = "splits"
	EntityPayers       EntityType = "payers"
	EntitySettlements  EntityType = "settlements"
	EntityReminders    EntityType = "reminders"
)

// SyncOrder is the fixed foreign-key-safe processing order for push, pull,
// and migration upload: parents strictly before dependents, so a partial
// failure never leaves a child row referencing a parent that does not exist
// on the other side yet.
var SyncOrder = []EntityType{
	EntityPersons,
	EntityGroups,
	EntityGroupMembers,
	EntityTransactions,
	EntitySplits,
	EntityPayers,
	EntitySettlements,
	EntityReminders,
}

// KnownEntity reports whether t is one of the syncable entity types.
func KnownEntity(t EntityType) bool {
	for _, known := range SyncOrder {
		if known == t {
			return true
		}
	}
	return false
}
