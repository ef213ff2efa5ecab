package knowledge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.sqlite")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreMutable_IdempotentIgnoringKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payload1 := map[string]any{"strategy": "CONQUEST", "rationale": "early rush"}
	require.NoError(t, store.StoreMutable(ctx, "Strategy", 0, payload1, 10, nil, []string{"rationale"}))

	payload2 := map[string]any{"strategy": "CONQUEST", "rationale": "reconsidered but unchanged"}
	require.NoError(t, store.StoreMutable(ctx, "Strategy", 0, payload2, 11, nil, []string{"rationale"}))

	history, err := store.GetMutableHistory(ctx, "Strategy", 0)
	require.NoError(t, err)
	require.Len(t, history, 1, "only the first write should have produced an audit row")

	current, err := store.GetMutable(ctx, "Strategy", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 11, current.UpdatedTurn, "updated_turn still advances to the latest write")
	require.Equal(t, "reconsidered but unchanged", current.Payload["rationale"])
}

func TestStoreMutable_RealChangeAppendsAudit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.StoreMutable(ctx, "Strategy", 1, map[string]any{"strategy": "CULTURE"}, 5, nil, nil))
	require.NoError(t, store.StoreMutable(ctx, "Strategy", 1, map[string]any{"strategy": "SCIENCE"}, 6, nil, nil))

	history, err := store.GetMutableHistory(ctx, "Strategy", 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestStoreEvent_IdempotentOnID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := EventID(3, 1)
	require.NoError(t, store.StoreEvent(ctx, id, 3, "UnitKilled", map[string]any{"x": 1}, nil))
	require.NoError(t, store.StoreEvent(ctx, id, 3, "UnitKilled", map[string]any{"x": 2}, nil))

	events, err := store.QueryEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, float64(1), events[0].Payload["x"], "the first write wins on a duplicate id")
}

func TestQueryEvents_VisibilityEnforcement(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	visible := Visibility{7: Full}
	hidden := Visibility{7: Hidden}

	require.NoError(t, store.StoreEvent(ctx, EventID(1, 0), 1, "A", map[string]any{}, visible))
	require.NoError(t, store.StoreEvent(ctx, EventID(1, 1), 1, "B", map[string]any{}, hidden))

	events, err := store.QueryEvents(ctx, EventFilter{Viewer: 7})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "A", events[0].Type)
}

func TestStoreTimed_NoDuplicateReplacementAcrossCalls(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.StoreTimed(ctx, "CityInfo", []TimedRow{
		{EntityKey: "city-1", Turn: 10, Payload: map[string]any{"pop": float64(1)}},
	}))
	require.NoError(t, store.StoreTimed(ctx, "CityInfo", []TimedRow{
		{EntityKey: "city-1", Turn: 10, Payload: map[string]any{"pop": float64(2)}},
	}))

	records, err := store.GetTimed(ctx, "CityInfo", TurnRange{}, "", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, float64(1), records[0].Payload["pop"])
}
