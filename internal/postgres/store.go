// Package postgres implements a types.Store on a PostgreSQL server through
// a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// Compile-time interface check: Store must implement types.Store.
var _ types.Store = (*Store)(nil)

// Pool settings.
const (
	maxConns          = 10
	minConns          = 1
	healthCheckPeriod = time.Minute
	maxConnLifetime   = time.Hour
)

// Store keeps ledger state in PostgreSQL tables.
type Store struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// Option configures Open.
type Option func(*pgxpool.Config)

// WithSchema places the tables in schema, creating it if needed.
func WithSchema(schema string) Option {
	return func(c *pgxpool.Config) {
		c.ConnConfig.RuntimeParams["search_path"] = schema
	}
}

// poolConfig parses dsn and applies the pool settings.
func poolConfig(dsn string, opts ...Option) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.HealthCheckPeriod = healthCheckPeriod
	cfg.MaxConnLifetime = maxConnLifetime
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}

// Open connects to dsn and creates the tables if they do not exist.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := poolConfig(dsn, opts...)
	if err != nil {
		return nil, err
	}

	if schema := cfg.ConnConfig.RuntimeParams["search_path"]; schema != "" {
		if err := createSchema(ctx, dsn, schema); err != nil {
			return nil, err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := applySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("creating schema %s: %w", schema, err)
	}
	return nil
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range schemaDDL {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}
	return nil
}

// Close releases the pool. Idempotent.
func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.Close()
	}
	return nil
}

// Load reads every resource, stake total and history entry.
func (s *Store) Load(ctx context.Context) (*types.Snapshot, error) {
	if s.closed.Load() {
		return nil, types.ErrStoreClosed
	}

	snap := &types.Snapshot{
		Stakes:  make(map[types.Account]types.Amount),
		History: make(map[types.ResourceID][]types.HistoryEntry),
	}

	// Repeatable read so the three tables are read from one snapshot.
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, selectResources)
	if err != nil {
		return nil, fmt.Errorf("querying resources: %w", err)
	}
	snap.Resources, err = pgx.CollectRows(rows, scanResource)
	if err != nil {
		return nil, fmt.Errorf("scanning resources: %w", err)
	}

	rows, err = tx.Query(ctx, "SELECT account, total FROM stakes")
	if err != nil {
		return nil, fmt.Errorf("querying stakes: %w", err)
	}
	var (
		account string
		total   int64
	)
	_, err = pgx.ForEachRow(rows, []any{&account, &total}, func() error {
		snap.Stakes[types.Account(account)] = types.Amount(total)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning stakes: %w", err)
	}

	rows, err = tx.Query(ctx,
		"SELECT resource_id, seq, account, reserved_at FROM reservation_history ORDER BY resource_id, seq")
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	var id, seq, at int64
	_, err = pgx.ForEachRow(rows, []any{&id, &seq, &account, &at}, func() error {
		rid := types.ResourceID(id)
		snap.History[rid] = append(snap.History[rid], types.HistoryEntry{
			ResourceID: rid,
			Seq:        seq,
			Account:    types.Account(account),
			At:         fromUnix(at),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning history: %w", err)
	}
	return snap, nil
}

// Commit applies a changeset in one serializable transaction. Every write
// is guarded by the state it was computed from; a guard that fails, or a
// serialization failure against a concurrent writer, is ErrStaleState.
func (s *Store) Commit(ctx context.Context, c *types.Changeset) error {
	if s.closed.Load() {
		return types.ErrStoreClosed
	}
	if c.Empty() {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range c.Created {
		id := r.ID
		batch.Queue("SELECT COUNT(*) FROM resources").QueryRow(func(row pgx.Row) error {
			var count int64
			if err := row.Scan(&count); err != nil {
				return fmt.Errorf("counting resources: %w", err)
			}
			if count != int64(id) {
				return fmt.Errorf("%w: resource %d already assigned", types.ErrStaleState, id)
			}
			return nil
		})
		args := append([]any{int64(r.ID), r.Name, string(r.Category), string(r.Custodian), r.CreatedAt.Unix()},
			reservationColumns(r.Reservation)...)
		batch.Queue(insertResource, args...)
	}
	for _, u := range c.Updated {
		id := u.Resource.ID
		args := append(reservationColumns(u.Resource.Reservation), int64(id))
		args = append(args, reservationColumns(u.Prior)...)
		batch.Queue(updateReservation, args...).Exec(expectOneRow("reservation on resource %d changed", id))
	}
	for account, delta := range c.Stakes {
		switch {
		case delta > 0:
			batch.Queue(addStake, string(account), int64(delta))
		case delta < 0:
			batch.Queue(subtractStake, int64(-delta), string(account)).
				Exec(expectOneRow("stake total for %s changed", account))
			batch.Queue(deleteZeroStake, string(account))
		}
	}
	for _, h := range c.History {
		id, seq := h.ResourceID, h.Seq
		batch.Queue("SELECT COUNT(*) FROM reservation_history WHERE resource_id = $1", int64(id)).
			QueryRow(func(row pgx.Row) error {
				var count int64
				if err := row.Scan(&count); err != nil {
					return fmt.Errorf("counting history for resource %d: %w", id, err)
				}
				if count != seq {
					return fmt.Errorf("%w: history of resource %d changed", types.ErrStaleState, id)
				}
				return nil
			})
		batch.Queue(insertHistory, int64(h.ResourceID), h.Seq, string(h.Account), h.At.Unix())
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return stale(fmt.Errorf("applying changeset: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return stale(fmt.Errorf("committing changeset: %w", err))
	}
	return nil
}

// expectOneRow fails a guarded statement that matched no row.
func expectOneRow(format string, args ...any) func(pgconn.CommandTag) error {
	return func(tag pgconn.CommandTag) error {
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("%w: "+format, append([]any{types.ErrStaleState}, args...)...)
		}
		return nil
	}
}

// Postgres error codes raised when a concurrent writer got there first.
const (
	codeSerializationFailure = "40001"
	codeUniqueViolation      = "23505"
)

// stale marks err as ErrStaleState when the server reports a conflict with
// another transaction.
func stale(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == codeSerializationFailure || pgErr.Code == codeUniqueViolation) {
		return fmt.Errorf("%w: %w", types.ErrStaleState, err)
	}
	return err
}

// reservationColumns returns reserver, start_at, end_at and staked, all
// NULL for a free resource.
func reservationColumns(res *types.Reservation) []any {
	if res == nil {
		return []any{nil, nil, nil, nil}
	}
	return []any{string(res.Reserver), res.Start.Unix(), res.End.Unix(), int64(res.Staked)}
}

// scanResource converts a resources row into a types.Resource.
func scanResource(row pgx.CollectableRow) (types.Resource, error) {
	var (
		id, createdAt             int64
		name, category, custodian string
		reserver                  *string
		start, end, st            *int64
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
	if reserver != nil {
		if start == nil || end == nil || st == nil {
			return types.Resource{}, errors.New("reservation columns partially null")
		}
		r.Reservation = &types.Reservation{
			Reserver: types.Account(*reserver),
			Start:    fromUnix(*start),
			End:      fromUnix(*end),
			Staked:   types.Amount(*st),
		}
	}
	return r, nil
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
