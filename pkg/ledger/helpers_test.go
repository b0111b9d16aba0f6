package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

const (
	manager types.Account = "lab-admin"
	alice   types.Account = "alice"
	bob     types.Account = "bob"
	carol   types.Account = "carol"
)

var errTransfer = errors.New("transfer rejected")

// at returns the wall-clock instant t seconds after the epoch.
func at(t int64) time.Time {
	return time.Unix(t, 0).UTC()
}

// escrowOp is one transfer seen by fakeEscrow.
type escrowOp struct {
	Kind    string
	Account types.Account
	Amount  types.Amount
}

// fakeEscrow records holds and refunds and fails the ones it is told to.
type fakeEscrow struct {
	mu         sync.Mutex
	ops        []escrowOp
	failHold   map[types.Account]bool
	failRefund map[types.Account]bool
}

func newFakeEscrow() *fakeEscrow {
	return &fakeEscrow{
		failHold:   make(map[types.Account]bool),
		failRefund: make(map[types.Account]bool),
	}
}

func (e *fakeEscrow) Hold(_ context.Context, a types.Account, amt types.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failHold[a] {
		return errTransfer
	}
	e.ops = append(e.ops, escrowOp{Kind: transferHold, Account: a, Amount: amt})
	return nil
}

func (e *fakeEscrow) Refund(_ context.Context, a types.Account, amt types.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failRefund[a] {
		return errTransfer
	}
	e.ops = append(e.ops, escrowOp{Kind: transferRefund, Account: a, Amount: amt})
	return nil
}

// net returns held minus refunded for an account.
func (e *fakeEscrow) net(a types.Account) types.Amount {
	e.mu.Lock()
	defer e.mu.Unlock()
	var n types.Amount
	for _, op := range e.ops {
		if op.Account != a {
			continue
		}
		if op.Kind == transferHold {
			n += op.Amount
		} else {
			n -= op.Amount
		}
	}
	return n
}

func (e *fakeEscrow) recorded() []escrowOp {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]escrowOp(nil), e.ops...)
}

// recordingSink keeps every event in order.
type recordingSink struct {
	mu     sync.Mutex
	events []types.Event
}

func (s *recordingSink) Notify(_ context.Context, e types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) all() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Event(nil), s.events...)
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// fakeStore keeps committed state in memory and can be told to fail.
type fakeStore struct {
	mu         sync.Mutex
	snap       types.Snapshot
	failCommit bool
	commits    int
	closed     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{snap: types.Snapshot{
		Stakes:  make(map[types.Account]types.Amount),
		History: make(map[types.ResourceID][]types.HistoryEntry),
	}}
}

func (s *fakeStore) Load(context.Context) (*types.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := types.Snapshot{
		Resources: make([]types.Resource, len(s.snap.Resources)),
		Stakes:    make(map[types.Account]types.Amount),
		History:   make(map[types.ResourceID][]types.HistoryEntry),
	}
	for i, r := range s.snap.Resources {
		out.Resources[i] = r.Clone()
	}
	for a, amt := range s.snap.Stakes {
		out.Stakes[a] = amt
	}
	for id, h := range s.snap.History {
		out.History[id] = append([]types.HistoryEntry(nil), h...)
	}
	return &out, nil
}

func (s *fakeStore) Commit(_ context.Context, c *types.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}
	if s.failCommit {
		return errors.New("disk full")
	}
	for _, r := range c.Created {
		if int(r.ID) != len(s.snap.Resources) {
			return fmt.Errorf("%w: resource %d exists", types.ErrStaleState, r.ID)
		}
	}
	for _, u := range c.Updated {
		id := u.Resource.ID
		if int(id) >= len(s.snap.Resources) || !s.snap.Resources[id].Reservation.Equal(u.Prior) {
			return fmt.Errorf("%w: resource %d changed", types.ErrStaleState, id)
		}
	}
	for _, h := range c.History {
		if int64(len(s.snap.History[h.ResourceID])) != h.Seq {
			return fmt.Errorf("%w: history of %d changed", types.ErrStaleState, h.ResourceID)
		}
	}

	s.commits++
	for _, r := range c.Created {
		s.snap.Resources = append(s.snap.Resources, r.Clone())
	}
	for _, u := range c.Updated {
		s.snap.Resources[u.Resource.ID] = u.Resource.Clone()
	}
	for a, delta := range c.Stakes {
		if total := s.snap.Stakes[a] + delta; total != 0 {
			s.snap.Stakes[a] = total
		} else {
			delete(s.snap.Stakes, a)
		}
	}
	for _, h := range c.History {
		s.snap.History[h.ResourceID] = append(s.snap.History[h.ResourceID], h)
	}
	return nil
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fixture bundles a ledger with its fakes.
type fixture struct {
	ledger *Ledger
	escrow *fakeEscrow
	sink   *recordingSink
	store  *fakeStore
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupLedger opens a durable ledger over fakes with manager authorized.
func setupLedger(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		escrow: newFakeEscrow(),
		sink:   &recordingSink{},
		store:  newFakeStore(),
	}
	l, err := Open(context.Background(),
		WithStore(f.store),
		WithEscrow(f.escrow),
		WithSink(f.sink),
		WithAuthorizer(types.NewStaticManagers(manager)),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	f.ledger = l
	return f
}

// addResources creates n lab resources and clears the recorded events.
func (f *fixture) addResources(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.ledger.CreateResource(context.Background(), manager,
			types.NewResource{Name: "Bench", Category: types.CategoryLab}, at(0))
		require.NoError(t, err)
	}
	f.sink.reset()
}

// checkStakeInvariant asserts every stake total equals the sum of stored
// reservations held by that account.
func checkStakeInvariant(t *testing.T, l *Ledger, accounts ...types.Account) {
	t.Helper()
	sums := make(map[types.Account]types.Amount)
	for _, r := range l.Resources() {
		if r.Reservation != nil {
			sums[r.Reservation.Reserver] += r.Reservation.Staked
		}
	}
	for _, a := range accounts {
		require.Equal(t, sums[a], l.TotalStaked(a), "stake total for %s", a)
	}
}
