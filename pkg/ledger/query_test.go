package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

func TestQueries_NotFound(t *testing.T) {
	f := setupLedger(t)

	_, err := f.ledger.Resource(0)
	assert.ErrorIs(t, err, types.ErrResourceNotFound)
	_, err = f.ledger.IsReserved(0, at(0))
	assert.ErrorIs(t, err, types.ErrResourceNotFound)
	_, _, err = f.ledger.CurrentReserver(0, at(0))
	assert.ErrorIs(t, err, types.ErrResourceNotFound)
	_, err = f.ledger.RemainingTime(0, at(0))
	assert.ErrorIs(t, err, types.ErrResourceNotFound)
	_, err = f.ledger.ReservationHistory(0)
	assert.ErrorIs(t, err, types.ErrResourceNotFound)
	_, err = f.ledger.HistoryEntries(0)
	assert.ErrorIs(t, err, types.ErrResourceNotFound)
	assert.Zero(t, f.ledger.TotalStaked(alice))
}

func TestQueries_Timeline(t *testing.T) {
	f := setupLedger(t)
	f.addResources(t, 1)

	_, err := f.ledger.Reserve(context.Background(), 0, alice, time.Hour, types.MinStake, at(100))
	require.NoError(t, err)

	tests := []struct {
		name          string
		now           int64
		wantReserved  bool
		wantHolder    types.Account
		wantRemaining time.Duration
		wantExpired   bool
	}{
		{name: "at start", now: 100, wantReserved: true, wantHolder: alice, wantRemaining: time.Hour},
		{name: "midway", now: 1900, wantReserved: true, wantHolder: alice, wantRemaining: 30 * time.Minute},
		{name: "last second", now: 3699, wantReserved: true, wantHolder: alice, wantRemaining: time.Second},
		{name: "at end", now: 3700, wantExpired: true},
		{name: "long after", now: 100_000, wantExpired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := at(tt.now)

			reserved, err := f.ledger.IsReserved(0, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantReserved, reserved)

			holder, ok, err := f.ledger.CurrentReserver(0, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantReserved, ok)
			assert.Equal(t, tt.wantHolder, holder)

			remaining, err := f.ledger.RemainingTime(0, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemaining, remaining)

			expired := f.ledger.Expired(now)
			if tt.wantExpired {
				require.Len(t, expired, 1)
				assert.Equal(t, alice, expired[0].Reservation.Reserver)
			} else {
				assert.Empty(t, expired)
			}

			r, err := f.ledger.Resource(0)
			require.NoError(t, err)
			assert.NotNil(t, r.Reservation, "raw record stays until cleared")
			assert.Equal(t, types.MinStake, f.ledger.TotalStaked(alice))
		})
	}
}

func TestQueries_ReturnCopies(t *testing.T) {
	f := setupLedger(t)
	f.addResources(t, 1)

	_, err := f.ledger.Reserve(context.Background(), 0, alice, time.Hour, types.MinStake, at(0))
	require.NoError(t, err)

	r, err := f.ledger.Resource(0)
	require.NoError(t, err)
	r.Reservation.Reserver = carol
	r.Name = "renamed"

	all := f.ledger.Resources()
	all[0].Reservation.Staked = 0

	history, err := f.ledger.ReservationHistory(0)
	require.NoError(t, err)
	history[0] = carol

	fresh, err := f.ledger.Resource(0)
	require.NoError(t, err)
	assert.Equal(t, "Bench", fresh.Name)
	assert.Equal(t, alice, fresh.Reservation.Reserver)
	assert.Equal(t, types.MinStake, fresh.Reservation.Staked)

	history, err = f.ledger.ReservationHistory(0)
	require.NoError(t, err)
	assert.Equal(t, []types.Account{alice}, history)
}
