package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](seq func(func(*T, error) bool)) []*T {
	var out []*T
	seq(func(v *T, err error) bool {
		if err == nil {
			out = append(out, v)
		}
		return true
	})
	return out
}

func TestStreamingAggregator_TextDeltaThenClose(t *testing.T) {
	agg := NewStreamingAggregator()

	partials := drain(agg.ProcessTextDelta("Hello, "))
	require.Len(t, partials, 1)
	assert.True(t, partials[0].Partial)

	partials = drain(agg.ProcessTextDelta("world"))
	require.Len(t, partials, 1)

	final := agg.Close()
	require.NotNil(t, final)
	assert.False(t, final.Partial)
	assert.True(t, final.TurnComplete)
	assert.Equal(t, "Hello, world", final.TextContent())
}

func TestStreamingAggregator_ToolCallAccumulates(t *testing.T) {
	agg := NewStreamingAggregator()

	tc := ToolCall{ID: "call_1", Name: "lookup", Args: map[string]any{"q": "Agriculture"}}
	partials := drain(agg.ProcessToolCall(tc))
	require.Len(t, partials, 1)
	require.Len(t, partials[0].ToolCalls, 1)

	final := agg.Close()
	require.NotNil(t, final)
	assert.True(t, final.HasToolCalls())
	assert.Equal(t, tc, final.ToolCalls[0])
}

func TestStreamingAggregator_ThinkingAccumulatesSeparatelyFromText(t *testing.T) {
	agg := NewStreamingAggregator()

	drain(agg.ProcessThinkingDelta("considering options"))
	drain(agg.ProcessTextDelta("final answer"))

	final := agg.Close()
	require.NotNil(t, final)
	assert.Equal(t, "final answer", final.TextContent())
	require.NotNil(t, final.Thinking)
	assert.Equal(t, "considering options", final.Thinking.Content)
}

func TestStreamingAggregator_CloseWithNothingAccumulatedReturnsNil(t *testing.T) {
	agg := NewStreamingAggregator()
	assert.Nil(t, agg.Close())
}

func TestStreamingAggregator_ResetsStateAfterClose(t *testing.T) {
	agg := NewStreamingAggregator()
	drain(agg.ProcessTextDelta("first turn"))
	first := agg.Close()
	require.NotNil(t, first)

	assert.Nil(t, agg.Close())

	drain(agg.ProcessTextDelta("second turn"))
	second := agg.Close()
	require.NotNil(t, second)
	assert.Equal(t, "second turn", second.TextContent())
}
