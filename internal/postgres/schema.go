package postgres

// Schema DDL. Timestamps are unix seconds; amounts are micro-units.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS resources (
    resource_id BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL,
    custodian TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    reserver TEXT,
    start_at BIGINT,
    end_at BIGINT,
    staked BIGINT
)`,
	`CREATE TABLE IF NOT EXISTS stakes (
    account TEXT PRIMARY KEY,
    total BIGINT NOT NULL CHECK (total >= 0)
)`,
	`CREATE TABLE IF NOT EXISTS reservation_history (
    resource_id BIGINT NOT NULL REFERENCES resources(resource_id),
    seq BIGINT NOT NULL,
    account TEXT NOT NULL,
    reserved_at BIGINT NOT NULL,
    PRIMARY KEY (resource_id, seq)
)`,
	`CREATE INDEX IF NOT EXISTS idx_reservation_history_account ON reservation_history(account)`,
}

const selectResources = `SELECT resource_id, name, category, custodian, created_at, reserver, start_at, end_at, staked
FROM resources ORDER BY resource_id`

const insertResource = `INSERT INTO resources (resource_id, name, category, custodian, created_at, reserver, start_at, end_at, staked)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// updateReservation rewrites a reservation only if the stored one is still
// the one the update was computed from.
const updateReservation = `UPDATE resources SET reserver = $1, start_at = $2, end_at = $3, staked = $4
WHERE resource_id = $5
  AND reserver IS NOT DISTINCT FROM $6::text
  AND start_at IS NOT DISTINCT FROM $7::bigint
  AND end_at IS NOT DISTINCT FROM $8::bigint
  AND staked IS NOT DISTINCT FROM $9::bigint`

const (
	addStake = `INSERT INTO stakes (account, total) VALUES ($1, $2)
ON CONFLICT (account) DO UPDATE SET total = stakes.total + excluded.total`
	subtractStake   = `UPDATE stakes SET total = total - $1 WHERE account = $2 AND total >= $1`
	deleteZeroStake = `DELETE FROM stakes WHERE account = $1 AND total = 0`
	insertHistory   = `INSERT INTO reservation_history (resource_id, seq, account, reserved_at) VALUES ($1, $2, $3, $4)`
)
