package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

func TestOpen_InMemory(t *testing.T) {
	l, err := Open(context.Background(),
		WithAuthorizer(types.AllowAll{}),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	id, err := l.CreateResource(context.Background(), alice,
		types.NewResource{Name: "Oscilloscope", Category: types.CategoryInstrument}, at(0))
	require.NoError(t, err)

	_, err = l.Reserve(context.Background(), id, bob, time.Hour, types.MinStake, at(0))
	require.NoError(t, err, "default escrow accepts every transfer")
	assert.Equal(t, types.MinStake, l.TotalStaked(bob))
	assert.NoError(t, l.Close())
}

func TestOpen_RestoresFromStore(t *testing.T) {
	f := setupLedger(t)
	f.addResources(t, 3)
	ctx := context.Background()

	_, err := f.ledger.Reserve(ctx, 1, alice, time.Hour, types.MinStake, at(0))
	require.NoError(t, err)
	_, err = f.ledger.Reserve(ctx, 2, bob, time.Hour, 2*types.MinStake, at(0))
	require.NoError(t, err)
	_, err = f.ledger.Release(ctx, 2, bob)
	require.NoError(t, err)

	reopened, err := Open(ctx,
		WithStore(f.store),
		WithAuthorizer(types.NewStaticManagers(manager)),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	assert.Equal(t, f.ledger.Resources(), reopened.Resources())
	assert.Equal(t, types.MinStake, reopened.TotalStaked(alice))
	assert.Zero(t, reopened.TotalStaked(bob))

	history, err := reopened.ReservationHistory(2)
	require.NoError(t, err)
	assert.Equal(t, []types.Account{bob}, history)

	id, err := reopened.CreateResource(ctx, manager,
		types.NewResource{Name: "Autoclave", Category: types.CategoryEquipment}, at(0))
	require.NoError(t, err)
	assert.Equal(t, types.ResourceID(3), id, "sequence resumes after stored resources")
}

func TestOpen_RejectsCorruptSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *fakeStore)
	}{
		{
			name: "gap in resource ids",
			mutate: func(s *fakeStore) {
				s.snap.Resources[1].ID = 5
			},
		},
		{
			name: "stake total without reservation",
			mutate: func(s *fakeStore) {
				s.snap.Stakes[carol] = types.MinStake
			},
		},
		{
			name: "reservation without stake total",
			mutate: func(s *fakeStore) {
				delete(s.snap.Stakes, alice)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupLedger(t)
			f.addResources(t, 2)
			_, err := f.ledger.Reserve(context.Background(), 0, alice, time.Hour, types.MinStake, at(0))
			require.NoError(t, err)

			tt.mutate(f.store)

			_, err = Open(context.Background(), WithStore(f.store), WithLogger(quietLogger()))
			assert.ErrorIs(t, err, types.ErrCorruptSnapshot)
		})
	}
}

func TestSequence(t *testing.T) {
	s := NewSequence(3)
	assert.Equal(t, types.ResourceID(3), s.Peek())
	assert.Equal(t, types.ResourceID(3), s.Peek(), "peek does not consume")
	s.Advance()
	assert.Equal(t, types.ResourceID(4), s.Peek())
}

// openPeer opens a second ledger over f's store and escrow, as another
// process sharing the same database would.
func (f *fixture) openPeer(t *testing.T) (*Ledger, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	l, err := Open(context.Background(),
		WithStore(f.store),
		WithEscrow(f.escrow),
		WithSink(sink),
		WithAuthorizer(types.NewStaticManagers(manager)),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	return l, sink
}

func TestSharedStore_SecondReleaseNeverDoubleRefunds(t *testing.T) {
	f := setupLedger(t)
	f.addResources(t, 2)
	ctx := context.Background()

	for _, id := range []types.ResourceID{0, 1} {
		_, err := f.ledger.Reserve(ctx, id, alice, time.Hour, types.MinStake, at(0))
		require.NoError(t, err)
	}
	peer, peerSink := f.openPeer(t)

	_, err := f.ledger.Release(ctx, 0, alice)
	require.NoError(t, err)

	_, err = peer.Release(ctx, 0, alice)
	require.ErrorIs(t, err, types.ErrNotReserved)
	assert.Empty(t, peerSink.all())
	assert.Equal(t, types.MinStake, f.escrow.net(alice), "only resource 1 is still staked")
	assert.Equal(t, types.MinStake, peer.TotalStaked(alice))

	_, err = peer.Release(ctx, 1, alice)
	require.NoError(t, err)
	assert.Zero(t, f.escrow.net(alice))
}

func TestSharedStore_StaleViewSeesOtherWriters(t *testing.T) {
	f := setupLedger(t)
	f.addResources(t, 1)
	ctx := context.Background()
	peer, _ := f.openPeer(t)

	id, err := f.ledger.CreateResource(ctx, manager, types.NewResource{Name: "from first", Category: types.CategoryLab}, at(0))
	require.NoError(t, err)
	peerID, err := peer.CreateResource(ctx, manager, types.NewResource{Name: "from peer", Category: types.CategoryLab}, at(0))
	require.NoError(t, err)
	assert.Equal(t, types.ResourceID(1), id)
	assert.Equal(t, types.ResourceID(2), peerID, "peer picks the next free id")

	_, err = f.ledger.Reserve(ctx, 0, bob, time.Hour, types.MinStake, at(0))
	require.NoError(t, err)
	_, err = peer.Reserve(ctx, 0, carol, time.Hour, types.MinStake, at(10))
	var are *types.AlreadyReservedError
	require.True(t, errors.As(err, &are), "got %v", err)
	assert.Equal(t, bob, are.Holder)
	assert.Zero(t, f.escrow.net(carol), "carol's hold is reversed")

	reopened, err := Open(ctx, WithStore(f.store), WithLogger(quietLogger()))
	require.NoError(t, err)
	names := make([]string, 0, 3)
	for _, r := range reopened.Resources() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Bench", "from first", "from peer"}, names)
	assert.Equal(t, types.MinStake, reopened.TotalStaked(bob))
	assert.Zero(t, reopened.TotalStaked(carol))
}
