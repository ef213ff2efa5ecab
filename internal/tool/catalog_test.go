package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_ListIsSortedAndCached(t *testing.T) {
	cat := NewCatalog()
	a, err := NewInformationalTool("zzz", "last", nil, func(ctx context.Context, args json.RawMessage) (any, error) {
		return "z", nil
	})
	require.NoError(t, err)
	b, err := NewInformationalTool("aaa", "first", nil, func(ctx context.Context, args json.RawMessage) (any, error) {
		return "a", nil
	})
	require.NoError(t, err)

	cat.Register(a)
	cat.Register(b)

	first := cat.List()
	require.Len(t, first, 2)
	assert.Equal(t, "aaa", first[0].Name)
	assert.Equal(t, "zzz", first[1].Name)

	second := cat.List()
	assert.Same(t, &first[0], &second[0])
}

func TestCatalog_RegisterDuplicatePanics(t *testing.T) {
	cat := NewCatalog()
	a, err := NewInformationalTool("dup", "d", nil, func(ctx context.Context, args json.RawMessage) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	cat.Register(a)
	assert.Panics(t, func() { cat.Register(a) })
}

func TestCatalog_CallUnknownToolReturnsNotFound(t *testing.T) {
	cat := NewCatalog()
	_, err := cat.Call(context.Background(), "missing", nil)
	require.Error(t, err)
}

func TestCatalog_CallDispatchesToTool(t *testing.T) {
	cat := NewCatalog()
	tl, err := NewInformationalTool("echo", "echoes input", nil, func(ctx context.Context, args json.RawMessage) (any, error) {
		return string(args), nil
	})
	require.NoError(t, err)
	cat.Register(tl)

	result, err := cat.Call(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, result)
}
