package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
//
// ledger_entries is append-only; the UNIQUE (reference_id, kind) index is what
// enforces idempotent appends. balances is the materialized cache, keyed by
// the canonical pair plus currency, and is rebuildable from ledger_entries.
const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    from_user_id TEXT NOT NULL,
    to_user_id TEXT NOT NULL,
    amount_minor INTEGER NOT NULL,
    currency TEXT NOT NULL,
    kind TEXT NOT NULL,
    reference_id TEXT NOT NULL,
    description TEXT,
    created_at INTEGER NOT NULL,
    UNIQUE (reference_id, kind)
);

CREATE TABLE IF NOT EXISTS balances (
    group_id TEXT NOT NULL,
    user_a TEXT NOT NULL,
    user_b TEXT NOT NULL,
    currency TEXT NOT NULL,
    amount_minor INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (group_id, user_a, user_b, currency)
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_replay ON ledger_entries(group_id, created_at, id);
CREATE INDEX IF NOT EXISTS idx_balances_user_a ON balances(user_a);
CREATE INDEX IF NOT EXISTS idx_balances_user_b ON balances(user_b);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
