package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

type countingSink struct {
	kinds []string
}

func (c *countingSink) Notify(_ context.Context, e types.Event) {
	c.kinds = append(c.kinds, e.Kind())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	sink.Notify(context.Background(), types.ResourceReserved{
		ID: 3, Reserver: "alice", Staked: types.MinStake, End: time.Unix(3600, 0).UTC(),
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ledger event", line["msg"])
	assert.Equal(t, types.EventResourceReserved, line["kind"])
	assert.Equal(t, "alice", line["reserver"])
	assert.EqualValues(t, 3, line["resource"])
}

func TestFileSink_AppendsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink := NewFileSink(path, nil)
	sink.now = func() time.Time { return time.Unix(42, 0) }
	ctx := context.Background()

	sink.Notify(ctx, types.ResourceCreated{ID: 0, Name: "Bench", Category: types.CategoryLab})
	sink.Notify(ctx, types.ReservationExpired{ID: 0, FormerHolder: "bob"})

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, types.EventResourceCreated, records[0].Kind)
	assert.Equal(t, types.EventReservationExpired, records[1].Kind)
	assert.Equal(t, time.Unix(42, 0).UTC(), records[0].At)
	assert.NotEqual(t, records[0].EventID, records[1].EventID)

	var expired types.ReservationExpired
	require.NoError(t, json.Unmarshal(records[1].Payload, &expired))
	assert.Equal(t, types.ReservationExpired{ID: 0, FormerHolder: "bob"}, expired)
}

func TestFileSink_WriteFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing-dir", "events.jsonl")
	sink := NewFileSink(path, slog.New(slog.NewTextHandler(&buf, nil)))

	sink.Notify(context.Background(), types.ResourceReleased{ID: 1, Reserver: "carol", Staked: types.MinStake})

	assert.Contains(t, buf.String(), "writing event")
}

func TestReadFile_Missing(t *testing.T) {
	records, err := ReadFile(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMulti(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := Multi{a, b}

	m.Notify(context.Background(), types.ResourceCreated{ID: 0, Name: "x", Category: types.CategoryBook})
	m.Notify(context.Background(), types.ResourceReleased{ID: 0, Reserver: "alice"})

	want := []string{types.EventResourceCreated, types.EventResourceReleased}
	assert.Equal(t, want, a.kinds)
	assert.Equal(t, want, b.kinds)
}
