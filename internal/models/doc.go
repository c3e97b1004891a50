// Package models defines the core domain entities for the Tally ledger.
//
// Every top-level entity embeds SyncMeta, which carries the fields the sync
// engine needs: a stable UUID primary key, the owning account, the
// last-modified timestamp that drives last-write-wins conflict resolution,
// and an optional tombstone timestamp for soft deletes.
//
// Amounts are stored as integer minor units (cents for USD) to keep the
// split arithmetic exact. Conversion to display amounts happens at the edge,
// never inside the engine.
//
// Relationships are plain foreign-key references (UUIDs), not pointers.
// Splits and Payers reference their Transaction and Person by ID; lookups go
// through the store, never through a shared object graph.
package models
