package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// IMPORTANT: parent tables (persons, groups, transactions) must be created
// before their dependents because of the foreign key constraints, matching
// the fixed dependency order the sync engine uses.
const schema = `
CREATE TABLE IF NOT EXISTS persons (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    archived INTEGER NOT NULL DEFAULT 0,
    photo_path TEXT NOT NULL DEFAULT '',
    photo_url TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS group_members (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    group_id TEXT NOT NULL,
    person_id TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER,
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL,
    amount_minor INTEGER NOT NULL,
    currency TEXT NOT NULL,
    method TEXT NOT NULL,
    date INTEGER NOT NULL,
    group_id TEXT,
    note TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS splits (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    person_id TEXT NOT NULL,
    owed_minor INTEGER NOT NULL,
    raw_input TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER,
    FOREIGN KEY (transaction_id) REFERENCES transactions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payers (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    person_id TEXT NOT NULL,
    paid_minor INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER,
    FOREIGN KEY (transaction_id) REFERENCES transactions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settlements (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    from_person_id TEXT NOT NULL,
    to_person_id TEXT NOT NULL,
    amount_minor INTEGER NOT NULL,
    currency TEXT NOT NULL,
    date INTEGER NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS reminders (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    person_id TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    due_date INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS sync_state (
    entity_type TEXT PRIMARY KEY,
    push_watermark INTEGER NOT NULL DEFAULT 0,
    pull_watermark INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS migration_state (
    step TEXT PRIMARY KEY,
    completed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_persons_owner_updated ON persons(owner_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_groups_owner_updated ON groups(owner_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_group_members_owner_updated ON group_members(owner_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_group_members_group_id ON group_members(group_id);
CREATE INDEX IF NOT EXISTS idx_transactions_owner_updated ON transactions(owner_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_splits_owner_updated ON splits(owner_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_splits_transaction_id ON splits(transaction_id);
CREATE INDEX IF NOT EXISTS idx_splits_person_id ON splits(person_id);
CREATE INDEX IF NOT EXISTS idx_payers_owner_updated ON payers(owner_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_payers_transaction_id ON payers(transaction_id);
CREATE INDEX IF NOT EXISTS idx_payers_person_id ON payers(person_id);
CREATE INDEX IF NOT EXISTS idx_settlements_owner_updated ON settlements(owner_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_reminders_owner_updated ON reminders(owner_id, updated_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
