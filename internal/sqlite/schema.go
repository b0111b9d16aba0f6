package sqlite

// Schema DDL. Timestamps are unix seconds; amounts are micro-units.
const (
	createResources = `CREATE TABLE IF NOT EXISTS resources (
    resource_id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL,
    custodian TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    reserver TEXT,
    start_at INTEGER,
    end_at INTEGER,
    staked INTEGER
);`

	createStakes = `CREATE TABLE IF NOT EXISTS stakes (
    account TEXT PRIMARY KEY,
    total INTEGER NOT NULL CHECK (total >= 0)
);`

	createReservationHistory = `CREATE TABLE IF NOT EXISTS reservation_history (
    resource_id INTEGER NOT NULL,
    seq INTEGER NOT NULL,
    account TEXT NOT NULL,
    reserved_at INTEGER NOT NULL,
    PRIMARY KEY (resource_id, seq),
    FOREIGN KEY (resource_id) REFERENCES resources(resource_id)
);`

	createBalances = `CREATE TABLE IF NOT EXISTS balances (
    account TEXT PRIMARY KEY,
    available INTEGER NOT NULL DEFAULT 0 CHECK (available >= 0),
    held INTEGER NOT NULL DEFAULT 0 CHECK (held >= 0)
);`

	createTransfers = `CREATE TABLE IF NOT EXISTS transfers (
    transfer_id TEXT PRIMARY KEY,
    account TEXT NOT NULL,
    kind TEXT NOT NULL,
    amount INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);`
)

// Index DDL for common queries.
const (
	idxResourcesReserver = `CREATE INDEX IF NOT EXISTS idx_resources_reserver ON resources(reserver);`
	idxHistoryAccount    = `CREATE INDEX IF NOT EXISTS idx_reservation_history_account ON reservation_history(account);`
	idxTransfersAccount  = `CREATE INDEX IF NOT EXISTS idx_transfers_account ON transfers(account, created_at);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createResources,
	createStakes,
	createReservationHistory,
	createBalances,
	createTransfers,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxResourcesReserver,
	idxHistoryAccount,
	idxTransfersAccount,
}
