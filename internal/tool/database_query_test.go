package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func techRecords() []Record {
	return []Record{
		{Type: "TECH_AGRICULTURE", Name: "Agriculture", Data: map[string]any{"cost": 20}},
		{Type: "TECH_POTTERY", Name: "Pottery", Data: map[string]any{"cost": 25}},
		{Type: "TECH_BRONZE_WORKING", Name: "Bronze Working", Data: map[string]any{"cost": 30}},
	}
}

func TestDatabaseQueryTool_ExactTypeReturnsSingleRecord(t *testing.T) {
	tl, err := NewDatabaseQueryTool("techs", "tech catalog", func(ctx context.Context) ([]Record, error) {
		return techRecords(), nil
	})
	require.NoError(t, err)

	result, err := tl.Execute(context.Background(), json.RawMessage(`{"search":"TECH_AGRICULTURE"}`))
	require.NoError(t, err)

	rec, ok := result.(Record)
	require.True(t, ok)
	require.Equal(t, "Agriculture", rec.Name)
}

func TestDatabaseQueryTool_EmptySearchListsWithinLimit(t *testing.T) {
	tl, err := NewDatabaseQueryTool("techs", "tech catalog", func(ctx context.Context) ([]Record, error) {
		return techRecords(), nil
	})
	require.NoError(t, err)

	result, err := tl.Execute(context.Background(), json.RawMessage(`{"maxResults":2}`))
	require.NoError(t, err)

	recs, ok := result.([]Record)
	require.True(t, ok)
	require.Len(t, recs, 2)
}

func TestDatabaseQueryTool_LoaderCalledOnce(t *testing.T) {
	calls := 0
	tl, err := NewDatabaseQueryTool("techs", "tech catalog", func(ctx context.Context) ([]Record, error) {
		calls++
		return techRecords(), nil
	})
	require.NoError(t, err)

	_, err = tl.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = tl.Execute(context.Background(), json.RawMessage(`{"search":"Pottery"}`))
	require.NoError(t, err)

	require.Equal(t, 1, calls)
}
