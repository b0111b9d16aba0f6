package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// Compile-time interface check: Backend must implement Store.
var _ types.Store = (*Backend)(nil)

const selectResources = `SELECT resource_id, name, category, custodian, created_at, reserver, start_at, end_at, staked
FROM resources ORDER BY resource_id`

const insertResource = `INSERT INTO resources (resource_id, name, category, custodian, created_at, reserver, start_at, end_at, staked)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// updateReservation rewrites a reservation only if the stored one is still
// the one the update was computed from.
const updateReservation = `UPDATE resources SET reserver = ?, start_at = ?, end_at = ?, staked = ?
WHERE resource_id = ? AND reserver IS ? AND start_at IS ? AND end_at IS ? AND staked IS ?`

const (
	addStake = `INSERT INTO stakes (account, total) VALUES (?, ?)
ON CONFLICT(account) DO UPDATE SET total = total + excluded.total`
	subtractStake   = `UPDATE stakes SET total = total - ? WHERE account = ? AND total >= ?`
	deleteZeroStake = `DELETE FROM stakes WHERE account = ? AND total = 0`
)

// Load reads every resource, stake total and history entry.
func (b *Backend) Load(ctx context.Context) (*types.Snapshot, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	// One transaction so the three tables are read at the same instant.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}
	defer tx.Rollback()

	snap := &types.Snapshot{}
	if snap.Resources, err = loadResources(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Stakes, err = loadStakes(ctx, tx); err != nil {
		return nil, err
	}
	if snap.History, err = loadHistory(ctx, tx); err != nil {
		return nil, err
	}
	return snap, nil
}

func loadResources(ctx context.Context, tx *sql.Tx) ([]types.Resource, error) {
	rows, err := tx.QueryContext(ctx, selectResources)
	if err != nil {
		return nil, fmt.Errorf("querying resources: %w", err)
	}
	defer rows.Close()

	var out []types.Resource
	for rows.Next() {
		r, err := hydrateResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning resource: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resources: %w", err)
	}
	return out, nil
}

func loadStakes(ctx context.Context, tx *sql.Tx) (map[types.Account]types.Amount, error) {
	rows, err := tx.QueryContext(ctx, "SELECT account, total FROM stakes")
	if err != nil {
		return nil, fmt.Errorf("querying stakes: %w", err)
	}
	defer rows.Close()

	out := make(map[types.Account]types.Amount)
	for rows.Next() {
		var account string
		var total int64
		if err := rows.Scan(&account, &total); err != nil {
			return nil, fmt.Errorf("scanning stake: %w", err)
		}
		out[types.Account(account)] = types.Amount(total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stakes: %w", err)
	}
	return out, nil
}

func loadHistory(ctx context.Context, tx *sql.Tx) (map[types.ResourceID][]types.HistoryEntry, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT resource_id, seq, account, reserved_at FROM reservation_history ORDER BY resource_id, seq")
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	out := make(map[types.ResourceID][]types.HistoryEntry)
	for rows.Next() {
		var (
			id, seq, at int64
			account     string
		)
		if err := rows.Scan(&id, &seq, &account, &at); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		rid := types.ResourceID(id)
		out[rid] = append(out[rid], types.HistoryEntry{
			ResourceID: rid,
			Seq:        seq,
			Account:    types.Account(account),
			At:         fromUnix(at),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return out, nil
}

// Commit applies a changeset in one transaction. The transaction takes the
// write lock when it begins, so the checks against stored state and the
// writes that depend on them see no other writer in between.
func (b *Backend) Commit(ctx context.Context, c *types.Changeset) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if c.Empty() {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertResources(ctx, tx, c.Created); err != nil {
		return err
	}
	if err := updateResources(ctx, tx, c.Updated); err != nil {
		return err
	}
	if err := applyStakes(ctx, tx, c.Stakes); err != nil {
		return err
	}
	if err := appendHistory(ctx, tx, c.History); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing changeset: %w", err)
	}
	return nil
}

func insertResources(ctx context.Context, tx *sql.Tx, created []types.Resource) error {
	for _, r := range created {
		var count int64
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM resources").Scan(&count); err != nil {
			return fmt.Errorf("counting resources: %w", err)
		}
		if count != int64(r.ID) {
			return fmt.Errorf("%w: resource %d already assigned", types.ErrStaleState, r.ID)
		}
		args := append([]any{int64(r.ID), r.Name, string(r.Category), string(r.Custodian), r.CreatedAt.Unix()},
			reservationColumns(r.Reservation)...)
		if _, err := tx.ExecContext(ctx, insertResource, args...); err != nil {
			return fmt.Errorf("inserting resource %d: %w", r.ID, err)
		}
	}
	return nil
}

func updateResources(ctx context.Context, tx *sql.Tx, updated []types.ResourceUpdate) error {
	for _, u := range updated {
		next := reservationColumns(u.Resource.Reservation)
		prior := reservationColumns(u.Prior)
		args := append(next, int64(u.Resource.ID))
		args = append(args, prior...)

		res, err := tx.ExecContext(ctx, updateReservation, args...)
		if err != nil {
			return fmt.Errorf("updating resource %d: %w", u.Resource.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating resource %d: %w", u.Resource.ID, err)
		}
		if n != 1 {
			return fmt.Errorf("%w: reservation on resource %d changed", types.ErrStaleState, u.Resource.ID)
		}
	}
	return nil
}

func applyStakes(ctx context.Context, tx *sql.Tx, deltas map[types.Account]types.Amount) error {
	for account, delta := range deltas {
		switch {
		case delta > 0:
			if _, err := tx.ExecContext(ctx, addStake, string(account), int64(delta)); err != nil {
				return fmt.Errorf("adding stake for %s: %w", account, err)
			}
		case delta < 0:
			res, err := tx.ExecContext(ctx, subtractStake, int64(-delta), string(account), int64(-delta))
			if err != nil {
				return fmt.Errorf("releasing stake for %s: %w", account, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("releasing stake for %s: %w", account, err)
			}
			if n != 1 {
				return fmt.Errorf("%w: stake total for %s changed", types.ErrStaleState, account)
			}
			if _, err := tx.ExecContext(ctx, deleteZeroStake, string(account)); err != nil {
				return fmt.Errorf("releasing stake for %s: %w", account, err)
			}
		}
	}
	return nil
}

func appendHistory(ctx context.Context, tx *sql.Tx, entries []types.HistoryEntry) error {
	for _, h := range entries {
		var count int64
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM reservation_history WHERE resource_id = ?", int64(h.ResourceID),
		).Scan(&count); err != nil {
			return fmt.Errorf("counting history for resource %d: %w", h.ResourceID, err)
		}
		if count != h.Seq {
			return fmt.Errorf("%w: history of resource %d changed", types.ErrStaleState, h.ResourceID)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO reservation_history (resource_id, seq, account, reserved_at) VALUES (?, ?, ?, ?)",
			int64(h.ResourceID), h.Seq, string(h.Account), h.At.Unix(),
		); err != nil {
			return fmt.Errorf("appending history for resource %d: %w", h.ResourceID, err)
		}
	}
	return nil
}

// reservationColumns returns reserver, start_at, end_at and staked, all
// NULL for a free resource.
func reservationColumns(res *types.Reservation) []any {
	if res == nil {
		return []any{nil, nil, nil, nil}
	}
	return []any{string(res.Reserver), res.Start.Unix(), res.End.Unix(), int64(res.Staked)}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// hydrateResource converts a resources row into a types.Resource.
func hydrateResource(row rowScanner) (types.Resource, error) {
	var (
		id, createdAt  int64
		name, category string
		custodian      string
		reserver       sql.NullString
		start, end, st sql.NullInt64
	)
	if err := row.Scan(&id, &name, &category, &custodian, &createdAt, &reserver, &start, &end, &st); err != nil {
		return types.Resource{}, err
	}

	r := types.Resource{
		ID:        types.ResourceID(id),
		Name:      name,
		Category:  types.Category(category),
		Custodian: types.Account(custodian),
		CreatedAt: fromUnix(createdAt),
	}
	if reserver.Valid {
		r.Reservation = &types.Reservation{
			Reserver: types.Account(reserver.String),
			Start:    fromUnix(start.Int64),
			End:      fromUnix(end.Int64),
			Staked:   types.Amount(st.Int64),
		}
	}
	return r, nil
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
