package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// Ledger is the reservation engine. It owns every resource record, stake
// total and history log; callers receive copies.
type Ledger struct {
	mu sync.RWMutex

	store  types.Store
	escrow types.Escrow
	auth   types.Authorizer
	sink   types.Sink
	logger *slog.Logger

	seq       *Sequence
	resources []types.Resource
	stakes    map[types.Account]types.Amount
	history   map[types.ResourceID][]types.HistoryEntry
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStore makes the ledger durable. Without a store the ledger keeps its
// state in memory only.
func WithStore(s types.Store) Option {
	return func(l *Ledger) { l.store = s }
}

// WithEscrow sets the value-transfer capability. The default escrow accepts
// every hold and refund without moving anything.
func WithEscrow(e types.Escrow) Option {
	return func(l *Ledger) { l.escrow = e }
}

// WithAuthorizer sets the resource-manager check. The default authorizes
// nobody.
func WithAuthorizer(a types.Authorizer) Option {
	return func(l *Ledger) { l.auth = a }
}

// WithSink sets the event sink. Sinks are called while the writer lock is
// held, so they must not call back into the ledger.
func WithSink(s types.Sink) Option {
	return func(l *Ledger) { l.sink = s }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// Open builds a ledger and loads any state held by its store.
func Open(ctx context.Context, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		escrow:  nopEscrow{},
		auth:    types.StaticManagers{},
		sink:    nopSink{},
		logger:  slog.Default(),
		stakes:  make(map[types.Account]types.Amount),
		history: make(map[types.ResourceID][]types.HistoryEntry),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.store != nil {
		snap, err := l.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading ledger state: %w", err)
		}
		if err := l.restore(snap); err != nil {
			return nil, err
		}
	}
	l.seq = NewSequence(uint64(len(l.resources)))

	l.logger.Info("ledger opened",
		"resources", len(l.resources),
		"stakers", len(l.stakes),
		"durable", l.store != nil,
	)
	return l, nil
}

// Close releases the store. Idempotent.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

// restore installs a snapshot after checking that IDs are dense and that
// every stake total matches the reservations that back it.
func (l *Ledger) restore(snap *types.Snapshot) error {
	if snap == nil {
		return nil
	}

	computed := make(map[types.Account]types.Amount)
	for i, r := range snap.Resources {
		if r.ID != types.ResourceID(i) {
			return fmt.Errorf("%w: resource at position %d has id %d", types.ErrCorruptSnapshot, i, r.ID)
		}
		if r.Reservation != nil {
			computed[r.Reservation.Reserver] += r.Reservation.Staked
		}
	}
	for a, amt := range snap.Stakes {
		if computed[a] != amt {
			return fmt.Errorf("%w: stake total for %s is %s, reservations sum to %s",
				types.ErrCorruptSnapshot, a, amt, computed[a])
		}
	}
	for a, amt := range computed {
		if snap.Stakes[a] != amt {
			return fmt.Errorf("%w: missing stake total for %s", types.ErrCorruptSnapshot, a)
		}
	}

	l.resources = make([]types.Resource, len(snap.Resources))
	l.stakes = make(map[types.Account]types.Amount, len(snap.Stakes))
	l.history = make(map[types.ResourceID][]types.HistoryEntry, len(snap.History))
	for i, r := range snap.Resources {
		l.resources[i] = r.Clone()
	}
	for a, amt := range snap.Stakes {
		if amt != 0 {
			l.stakes[a] = amt
		}
	}
	for id, entries := range snap.History {
		l.history[id] = append([]types.HistoryEntry(nil), entries...)
	}
	return nil
}

// staleRejections are the outcomes that depend on stored state another
// writer may have changed since this ledger last read it.
var staleRejections = []error{
	types.ErrStaleState,
	types.ErrResourceNotFound,
	types.ErrAlreadyReserved,
	types.ErrNotReserved,
	types.ErrNotReserver,
}

// serialize runs op, which must validate against and mutate the in-memory
// state. Other processes may share a durable store, so when op fails on
// state they could have changed, the ledger reloads from the store and runs
// op once more. The caller must hold l.mu.
func (l *Ledger) serialize(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || l.store == nil || !isStale(err) {
		return err
	}
	if rerr := l.reload(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}
	l.logger.Debug("ledger state reloaded", "cause", err, "resources", len(l.resources))
	return op()
}

func isStale(err error) bool {
	for _, target := range staleRejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// reload replaces the in-memory state with the store's. The caller must
// hold l.mu.
func (l *Ledger) reload(ctx context.Context) error {
	snap, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reloading ledger state: %w", err)
	}
	if err := l.restore(snap); err != nil {
		return err
	}
	l.seq = NewSequence(uint64(len(l.resources)))
	return nil
}

// lookup returns the stored record for id. The caller must hold l.mu.
func (l *Ledger) lookup(id types.ResourceID) (*types.Resource, error) {
	if uint64(id) >= uint64(len(l.resources)) {
		return nil, types.ErrResourceNotFound
	}
	return &l.resources[id], nil
}

// nopEscrow accepts every transfer. Used when the caller moves value itself.
type nopEscrow struct{}

func (nopEscrow) Hold(context.Context, types.Account, types.Amount) error   { return nil }
func (nopEscrow) Refund(context.Context, types.Account, types.Amount) error { return nil }

type nopSink struct{}

func (nopSink) Notify(context.Context, types.Event) {}
