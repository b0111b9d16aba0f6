package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

func TestCreateResource(t *testing.T) {
	tests := []struct {
		name    string
		caller  types.Account
		input   types.NewResource
		wantErr error
	}{
		{
			name:    "unauthorized caller is rejected",
			caller:  alice,
			input:   types.NewResource{Name: "PCR machine", Category: types.CategoryInstrument},
			wantErr: types.ErrNotManager,
		},
		{
			name:    "empty name is rejected",
			caller:  manager,
			input:   types.NewResource{Name: "", Category: types.CategoryLab},
			wantErr: types.ErrNameEmpty,
		},
		{
			name:    "blank name is rejected",
			caller:  manager,
			input:   types.NewResource{Name: "   ", Category: types.CategoryLab},
			wantErr: types.ErrNameEmpty,
		},
		{
			name:    "unknown category is rejected",
			caller:  manager,
			input:   types.NewResource{Name: "Van", Category: "vehicle"},
			wantErr: types.ErrInvalidCategory,
		},
		{
			name:   "manager creates resource",
			caller: manager,
			input:  types.NewResource{Name: "Wet lab 2", Category: types.CategorySpace, Custodian: "facilities"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupLedger(t)
			id, err := f.ledger.CreateResource(context.Background(), tt.caller, tt.input, at(100))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.ledger.Resources())
				assert.Empty(t, f.sink.all())
				assert.Zero(t, f.store.commits)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, types.ResourceID(0), id)

			got, err := f.ledger.Resource(id)
			require.NoError(t, err)
			assert.Equal(t, tt.input.Name, got.Name)
			assert.Equal(t, tt.input.Category, got.Category)
			assert.Equal(t, tt.input.Custodian, got.Custodian)
			assert.Nil(t, got.Reservation)
			assert.Equal(t, at(100), got.CreatedAt)

			assert.Equal(t, []types.Event{
				types.ResourceCreated{ID: 0, Name: tt.input.Name, Category: tt.input.Category},
			}, f.sink.all())
		})
	}
}

func TestCreateResource_SequentialIDs(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	for want := 0; want < 5; want++ {
		id, err := f.ledger.CreateResource(ctx, manager,
			types.NewResource{Name: "Microscope", Category: types.CategoryInstrument}, at(0))
		require.NoError(t, err)
		assert.Equal(t, types.ResourceID(want), id)
	}
	assert.Len(t, f.ledger.Resources(), 5)
}

func TestCreateResource_FailedCommitLeavesNoGap(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	nr := types.NewResource{Name: "Centrifuge", Category: types.CategoryEquipment}

	f.store.failCommit = true
	_, err := f.ledger.CreateResource(ctx, manager, nr, at(0))
	require.Error(t, err)
	assert.Empty(t, f.ledger.Resources())
	assert.Empty(t, f.sink.all())

	f.store.failCommit = false
	id, err := f.ledger.CreateResource(ctx, manager, nr, at(0))
	require.NoError(t, err)
	assert.Equal(t, types.ResourceID(0), id)
}

func TestCreateResource_DefaultAuthorizerDeniesAll(t *testing.T) {
	l, err := Open(context.Background(), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = l.CreateResource(context.Background(), manager,
		types.NewResource{Name: "Bench", Category: types.CategoryLab}, at(0))
	assert.ErrorIs(t, err, types.ErrNotManager)
}

func TestCreateResource_CanceledContext(t *testing.T) {
	f := setupLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ledger.CreateResource(ctx, manager,
		types.NewResource{Name: "Bench", Category: types.CategoryLab}, at(0))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.ledger.Resources())
}
