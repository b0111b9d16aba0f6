package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// setupBackend creates an attached Backend in a temp dir, detached on cleanup.
func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { b.Detach() })
	return b
}

func unix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func TestLoad_EmptyStore(t *testing.T) {
	b := setupBackend(t)

	snap, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Resources)
	assert.Empty(t, snap.Stakes)
	assert.Empty(t, snap.History)
}

func TestCommit_RoundTrip(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	reserved := types.Resource{
		ID:        1,
		Name:      "Mass spectrometer",
		Category:  types.CategoryInstrument,
		Custodian: "core-facility",
		CreatedAt: unix(50),
		Reservation: &types.Reservation{
			Reserver: "alice",
			Start:    unix(100),
			End:      unix(3700),
			Staked:   types.MinStake,
		},
	}
	require.NoError(t, b.Commit(ctx, &types.Changeset{
		Created: []types.Resource{
			{ID: 0, Name: "Bench 1", Category: types.CategoryLab, CreatedAt: unix(50)},
			reserved,
		},
		Stakes: map[types.Account]types.Amount{"alice": types.MinStake},
		History: []types.HistoryEntry{
			{ResourceID: 1, Seq: 0, Account: "alice", At: unix(100)},
		},
	}))

	snap, err := b.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Resources, 2)
	assert.Nil(t, snap.Resources[0].Reservation)
	assert.Equal(t, reserved, snap.Resources[1])
	assert.Equal(t, map[types.Account]types.Amount{"alice": types.MinStake}, snap.Stakes)
	assert.Equal(t, []types.HistoryEntry{{ResourceID: 1, Seq: 0, Account: "alice", At: unix(100)}}, snap.History[1])
}

func TestCommit_UpdateClearsReservationAndStake(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	held := &types.Reservation{Reserver: "bob", Start: unix(0), End: unix(60), Staked: types.MinStake}
	r := types.Resource{ID: 0, Name: "Glovebox", Category: types.CategoryEquipment, CreatedAt: unix(0), Reservation: held}
	require.NoError(t, b.Commit(ctx, &types.Changeset{
		Created: []types.Resource{r},
		Stakes:  map[types.Account]types.Amount{"bob": types.MinStake},
	}))

	r.Reservation = nil
	r.Name = "ignored on update"
	require.NoError(t, b.Commit(ctx, &types.Changeset{
		Updated: []types.ResourceUpdate{{Resource: r, Prior: held}},
		Stakes:  map[types.Account]types.Amount{"bob": -types.MinStake},
	}))

	snap, err := b.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Resources, 1)
	assert.Nil(t, snap.Resources[0].Reservation)
	assert.Equal(t, "Glovebox", snap.Resources[0].Name, "name is immutable after insert")
	assert.Empty(t, snap.Stakes)
}

func TestCommit_StakesAreDeltas(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Commit(ctx, &types.Changeset{
			Stakes: map[types.Account]types.Amount{"alice": types.MinStake},
		}))
	}
	require.NoError(t, b.Commit(ctx, &types.Changeset{
		Stakes: map[types.Account]types.Amount{"alice": -types.MinStake},
	}))

	snap, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[types.Account]types.Amount{"alice": 2 * types.MinStake}, snap.Stakes)
}

func TestCommit_RejectsStaleState(t *testing.T) {
	held := &types.Reservation{Reserver: "alice", Start: unix(0), End: unix(60), Staked: types.MinStake}
	bench := types.Resource{ID: 0, Name: "Bench", Category: types.CategoryLab, Reservation: held}

	tests := []struct {
		name string
		c    types.Changeset
	}{
		{
			name: "id already assigned",
			c:    types.Changeset{Created: []types.Resource{{ID: 0, Name: "Other", Category: types.CategoryLab}}},
		},
		{
			name: "id ahead of the catalog",
			c:    types.Changeset{Created: []types.Resource{{ID: 5, Name: "Other", Category: types.CategoryLab}}},
		},
		{
			name: "reservation already cleared elsewhere",
			c: types.Changeset{Updated: []types.ResourceUpdate{{
				Resource: types.Resource{ID: 0},
				Prior:    nil,
			}}},
		},
		{
			name: "reservation replaced elsewhere",
			c: types.Changeset{Updated: []types.ResourceUpdate{{
				Resource: types.Resource{ID: 0},
				Prior:    &types.Reservation{Reserver: "bob", Start: unix(0), End: unix(60), Staked: types.MinStake},
			}}},
		},
		{
			name: "unknown resource",
			c:    types.Changeset{Updated: []types.ResourceUpdate{{Resource: types.Resource{ID: 9}}}},
		},
		{
			name: "stake already released",
			c:    types.Changeset{Stakes: map[types.Account]types.Amount{"bob": -types.MinStake}},
		},
		{
			name: "history appended elsewhere",
			c:    types.Changeset{History: []types.HistoryEntry{{ResourceID: 0, Seq: 0, Account: "bob", At: unix(2)}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setupBackend(t)
			ctx := context.Background()
			require.NoError(t, b.Commit(ctx, &types.Changeset{
				Created: []types.Resource{bench},
				Stakes:  map[types.Account]types.Amount{"alice": types.MinStake},
				History: []types.HistoryEntry{{ResourceID: 0, Seq: 0, Account: "alice", At: unix(0)}},
			}))

			err := b.Commit(ctx, &tt.c)
			require.ErrorIs(t, err, types.ErrStaleState)

			snap, err := b.Load(ctx)
			require.NoError(t, err)
			require.Len(t, snap.Resources, 1)
			assert.Equal(t, bench, snap.Resources[0])
			assert.Equal(t, map[types.Account]types.Amount{"alice": types.MinStake}, snap.Stakes)
			assert.Len(t, snap.History[0], 1)
		})
	}
}

func TestCommit_IsAtomic(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Commit(ctx, &types.Changeset{
		Created: []types.Resource{{ID: 0, Name: "Bench", Category: types.CategoryLab}},
		History: []types.HistoryEntry{{ResourceID: 0, Seq: 0, Account: "alice", At: unix(1)}},
	}))

	// A stale history entry fails the whole changeset.
	err := b.Commit(ctx, &types.Changeset{
		Created: []types.Resource{{ID: 1, Name: "Second bench", Category: types.CategoryLab}},
		Stakes:  map[types.Account]types.Amount{"carol": types.MinStake},
		History: []types.HistoryEntry{{ResourceID: 0, Seq: 0, Account: "bob", At: unix(2)}},
	})
	require.ErrorIs(t, err, types.ErrStaleState)

	snap, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Resources, 1)
	assert.Empty(t, snap.Stakes)
	assert.Len(t, snap.History[0], 1)
}

func TestCommit_EmptyChangesetIsNoop(t *testing.T) {
	b := setupBackend(t)
	require.NoError(t, b.Commit(context.Background(), &types.Changeset{}))
	require.NoError(t, b.Commit(context.Background(), nil))
}
