package agentruntime

import (
	"context"
	"encoding/json"
	"iter"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/tool"
)

// scriptedLLM returns a caller-supplied response for each successive call,
// ignoring stream (the runtime only ever calls with stream=false).
type scriptedLLM struct {
	calls int32
	next  func(call int, req *llm.Request) (*llm.Response, error)
}

func (m *scriptedLLM) Name() string           { return "scripted" }
func (m *scriptedLLM) Provider() llm.Provider { return llm.ProviderUnknown }
func (m *scriptedLLM) Close() error           { return nil }

func (m *scriptedLLM) GenerateContent(ctx context.Context, req *llm.Request, stream bool) iter.Seq2[*llm.Response, error] {
	return func(yield func(*llm.Response, error) bool) {
		call := int(atomic.AddInt32(&m.calls, 1)) - 1
		resp, err := m.next(call, req)
		yield(resp, err)
	}
}

// fakeAgent implements Agent with caller-supplied hooks.
type fakeAgent struct {
	name         string
	tier         string
	tools        []string
	initial      []*llm.Message
	stop         func(history []*StepResult) (bool, string)
	outputSchema map[string]any
}

func (a *fakeAgent) Name() string        { return a.name }
func (a *fakeAgent) Description() string { return "fake agent " + a.name }
func (a *fakeAgent) SystemPrompt(parameters map[string]any) string {
	return "you are " + a.name
}
func (a *fakeAgent) GetInitialMessages(parameters, input map[string]any) []*llm.Message {
	return a.initial
}
func (a *fakeAgent) ActiveTools() []string { return a.tools }
func (a *fakeAgent) ModelTier() string     { return a.tier }
func (a *fakeAgent) PrepareStep(step int, history []*StepResult) StepPrep {
	return StepPrep{}
}
func (a *fakeAgent) StopCheck(history []*StepResult) (bool, string) {
	return a.stop(history)
}
func (a *fakeAgent) OutputSchema() map[string]any { return a.outputSchema }

// stopAfter returns a StopCheck that stops once history has at least n steps.
func stopAfter(n int) func([]*StepResult) (bool, string) {
	return func(history []*StepResult) (bool, string) {
		return len(history) >= n, "reached target step count"
	}
}

// fakeTool is a minimal tool.Tool for exercising tool dispatch.
type fakeTool struct {
	name   string
	result any
	err    error
	calls  int32
}

func (t *fakeTool) Name() string                  { return t.name }
func (t *fakeTool) Description() string           { return "fake tool " + t.name }
func (t *fakeTool) Kind() tool.Kind               { return tool.KindInformational }
func (t *fakeTool) Annotations() tool.Annotations { return tool.Annotations{ReadOnly: true} }
func (t *fakeTool) InputSchema() *tool.Schema     { return nil }
func (t *fakeTool) OutputSchema() *tool.Schema    { return nil }
func (t *fakeTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	atomic.AddInt32(&t.calls, 1)
	return t.result, t.err
}

func textResponse(text string) *llm.Response {
	return &llm.Response{
		Content:      &llm.Content{Parts: []llm.Part{llm.TextPart(text)}, Role: llm.RoleAssistant},
		FinishReason: llm.FinishReasonStop,
	}
}

func toolCallResponse(id, name string, args map[string]any) *llm.Response {
	return &llm.Response{
		Content:      &llm.Content{Role: llm.RoleAssistant},
		ToolCalls:    []llm.ToolCall{{ID: id, Name: name, Args: args}},
		FinishReason: llm.FinishReasonToolCalls,
	}
}

func modelResolverFor(m llm.LLM) ModelResolver {
	return func(tier string) (llm.LLM, error) { return m, nil }
}

func TestCallAgent_SimpleTextResponse(t *testing.T) {
	model := &scriptedLLM{next: func(call int, req *llm.Request) (*llm.Response, error) {
		return textResponse("Agriculture unlocks Pottery."), nil
	}}

	rt := NewRuntime(tool.NewCatalog(), modelResolverFor(model))
	agent := &fakeAgent{name: "simple", stop: stopAfter(1)}
	rt.Register(agent)

	res, err := rt.CallAgent(context.Background(), "simple", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Agriculture unlocks Pottery.", res.Text)
	assert.Equal(t, 1, res.Steps)
	assert.Equal(t, llm.FinishReasonStop, res.FinishReason)
}

func TestCallAgent_ExecutesToolCallsAndContinues(t *testing.T) {
	ft := &fakeTool{name: "database_query", result: map[string]any{"found": "Pottery"}}
	catalog := tool.NewCatalog()
	catalog.Register(ft)

	model := &scriptedLLM{next: func(call int, req *llm.Request) (*llm.Response, error) {
		if call == 0 {
			return toolCallResponse("call_1", "database_query", map[string]any{"search": "Agriculture"}), nil
		}
		return textResponse("Built on the query result."), nil
	}}

	rt := NewRuntime(catalog, modelResolverFor(model))
	agent := &fakeAgent{name: "staffed", tools: []string{"database_query"}, stop: stopAfter(2)}
	rt.Register(agent)

	res, err := rt.CallAgent(context.Background(), "staffed", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ft.calls))
	assert.Equal(t, 2, res.Steps)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "database_query", res.ToolCalls[0].Name)
	assert.Equal(t, "Built on the query result.", res.Text)
}

func TestCallAgent_SafetyCapStopsLoop(t *testing.T) {
	model := &scriptedLLM{next: func(call int, req *llm.Request) (*llm.Response, error) {
		return toolCallResponse("call", "noop", nil), nil
	}}

	rt := NewRuntime(tool.NewCatalog(), modelResolverFor(model))
	agent := &fakeAgent{
		name: "looping",
		stop: func(history []*StepResult) (bool, string) { return false, "" },
	}
	rt.Register(agent)

	res, err := rt.CallAgent(context.Background(), "looping", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, maxSteps, res.Steps)
}

func TestCallAgent_ZeroMeaningfulStepsTriggersNudgeRetry(t *testing.T) {
	model := &scriptedLLM{next: func(call int, req *llm.Request) (*llm.Response, error) {
		if call < 2 {
			// Empty response: no tool calls, no text -> not meaningful.
			return &llm.Response{Content: &llm.Content{Role: llm.RoleAssistant}, FinishReason: llm.FinishReasonStop}, nil
		}
		return textResponse("finally, a real answer"), nil
	}}

	rt := NewRuntime(tool.NewCatalog(), modelResolverFor(model))
	agent := &fakeAgent{name: "nudged", stop: stopAfter(1)}
	rt.Register(agent)

	res, err := rt.CallAgent(context.Background(), "nudged", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "finally, a real answer", res.Text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&model.calls))
}

func TestCallAgent_RecursiveSelfCallGuardedFromToolMap(t *testing.T) {
	model := &scriptedLLM{next: func(call int, req *llm.Request) (*llm.Response, error) {
		return textResponse("n/a"), nil
	}}

	rt := NewRuntime(tool.NewCatalog(), modelResolverFor(model))
	a := &fakeAgent{name: "agentA", stop: stopAfter(1)}
	b := &fakeAgent{name: "agentB", stop: stopAfter(1)}
	rt.Register(a)
	rt.Register(b)

	toolMap := rt.effectiveTools(context.Background(), a)
	_, hasSelf := toolMap["call_agentA"]
	_, hasOther := toolMap["call_agentB"]
	assert.False(t, hasSelf, "an agent's own tool wrapper must not appear in its effective tool map")
	assert.True(t, hasOther, "other registered agents must be callable as tools")
}

func TestCallAgent_StructuredOutputParsesJSON(t *testing.T) {
	model := &scriptedLLM{next: func(call int, req *llm.Request) (*llm.Response, error) {
		return textResponse(`{"strategy":"economic","rationale":"growth window"}`), nil
	}}

	rt := NewRuntime(tool.NewCatalog(), modelResolverFor(model))
	agent := &fakeAgent{name: "structured", stop: stopAfter(1)}
	rt.Register(agent)

	res, err := rt.CallAgent(context.Background(), "structured", nil, nil, map[string]any{"type": "object"})
	require.NoError(t, err)
	require.NotNil(t, res.Structured)
	assert.Equal(t, "economic", res.Structured["strategy"])
}

func TestCallAgentsParallel_CollectsAllResults(t *testing.T) {
	model := &scriptedLLM{next: func(call int, req *llm.Request) (*llm.Response, error) {
		return textResponse("briefing"), nil
	}}

	rt := NewRuntime(tool.NewCatalog(), modelResolverFor(model))
	for _, name := range []string{"military", "economy", "diplomacy"} {
		rt.Register(&fakeAgent{name: name, stop: stopAfter(1)})
	}

	results, err := rt.CallAgentsParallel(context.Background(), []AgentCall{
		{Name: "military"},
		{Name: "economy"},
		{Name: "diplomacy"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, "briefing", res.Text)
	}
}
