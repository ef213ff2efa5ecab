// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agentruntime"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/bridge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/tool"
)

// fakeRefresher returns a scripted parameter record, or an error when err is set.
type fakeRefresher struct {
	err error
}

func (r *fakeRefresher) Refresh(ctx context.Context, player, turn int) (map[string]any, error) {
	if r.err != nil {
		return nil, r.err
	}
	return map[string]any{"report": "turn report"}, nil
}

// fakeStatusQuoTool counts invocations, standing in for the catalog's real
// keep-status-quo bridge-action tool.
type fakeStatusQuoTool struct {
	calls int32
}

func (t *fakeStatusQuoTool) Name() string                  { return keepStatusQuoTool }
func (t *fakeStatusQuoTool) Description() string           { return "fake keep-status-quo" }
func (t *fakeStatusQuoTool) Kind() tool.Kind                { return tool.KindBridgeAction }
func (t *fakeStatusQuoTool) Annotations() tool.Annotations { return tool.Annotations{} }
func (t *fakeStatusQuoTool) InputSchema() *tool.Schema     { return nil }
func (t *fakeStatusQuoTool) OutputSchema() *tool.Schema    { return nil }
func (t *fakeStatusQuoTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	atomic.AddInt32(&t.calls, 1)
	return map[string]any{"ok": true}, nil
}

func newTestBridge(t *testing.T) (*bridge.Client, *int32) {
	t.Helper()
	var readyCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&readyCalls, 1)
		json.NewEncoder(w).Encode(bridge.Result{Success: true})
	}))
	t.Cleanup(srv.Close)
	return bridge.New(srv.URL), &readyCalls
}

func newTestCatalog(statusQuo tool.Tool) *tool.Catalog {
	catalog := tool.NewCatalog()
	catalog.Register(statusQuo)
	return catalog
}

// succeedingAgent always produces a terminal-looking text response in one step.
type succeedingAgent struct{}

func (a *succeedingAgent) Name() string        { return "test-strategist" }
func (a *succeedingAgent) Description() string { return "test strategist" }
func (a *succeedingAgent) SystemPrompt(parameters map[string]any) string {
	return "decide"
}
func (a *succeedingAgent) GetInitialMessages(parameters, input map[string]any) []*llm.Message {
	report, _ := input["report"].(string)
	return []*llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(report)}}}
}
func (a *succeedingAgent) ActiveTools() []string { return nil }
func (a *succeedingAgent) ModelTier() string     { return "default" }
func (a *succeedingAgent) PrepareStep(step int, history []*agentruntime.StepResult) agentruntime.StepPrep {
	return agentruntime.StepPrep{}
}
func (a *succeedingAgent) StopCheck(history []*agentruntime.StepResult) (bool, string) {
	return len(history) >= 1, "one-shot"
}
func (a *succeedingAgent) OutputSchema() map[string]any { return nil }

func newTestRuntime(t *testing.T, catalog *tool.Catalog) *agentruntime.Runtime {
	t.Helper()
	model := &scriptedModel{}
	runtime := agentruntime.NewRuntime(catalog, func(tier string) (llm.LLM, error) { return model, nil })
	runtime.Register(&succeedingAgent{})
	return runtime
}

// scriptedModel always returns one text response, never requesting tools.
type scriptedModel struct{}

func (m *scriptedModel) Name() string           { return "scripted" }
func (m *scriptedModel) Provider() llm.Provider { return llm.ProviderUnknown }
func (m *scriptedModel) Close() error           { return nil }
func (m *scriptedModel) GenerateContent(ctx context.Context, req *llm.Request, stream bool) iter.Seq2[*llm.Response, error] {
	return func(yield func(*llm.Response, error) bool) {
		yield(&llm.Response{Content: &llm.Content{Role: llm.RoleAssistant, Parts: []llm.Part{llm.TextPart("decided")}}}, nil)
	}
}

func TestPipeline_SuccessfulTurnSignalsReady(t *testing.T) {
	statusQuo := &fakeStatusQuoTool{}
	catalog := newTestCatalog(statusQuo)
	runtime := newTestRuntime(t, catalog)
	bridgeClient, readyCalls := newTestBridge(t)

	p := New(runtime, catalog, bridgeClient, &fakeRefresher{}, func(player int) string { return "test-strategist" }, nil, nil)

	done := make(chan struct{})
	go func() {
		p.runTurn(context.Background(), 1, 1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runTurn did not complete in time")
	}

	assert.EqualValues(t, 0, statusQuo.calls, "a successful run must not fall back")
	assert.EqualValues(t, 1, atomic.LoadInt32(readyCalls))
}

func TestPipeline_RefreshFailureFallsBackToKeepStatusQuo(t *testing.T) {
	statusQuo := &fakeStatusQuoTool{}
	catalog := newTestCatalog(statusQuo)
	runtime := newTestRuntime(t, catalog)
	bridgeClient, readyCalls := newTestBridge(t)

	p := New(runtime, catalog, bridgeClient, &fakeRefresher{err: assertionError("refresh failed")}, func(player int) string { return "test-strategist" }, nil, nil)

	p.runTurn(context.Background(), 2, 5)

	assert.EqualValues(t, 1, statusQuo.calls)
	assert.EqualValues(t, 1, atomic.LoadInt32(readyCalls))
}

func TestPipeline_OnTurnStartDedupesStaleTurns(t *testing.T) {
	statusQuo := &fakeStatusQuoTool{}
	catalog := newTestCatalog(statusQuo)
	runtime := newTestRuntime(t, catalog)
	bridgeClient, _ := newTestBridge(t)

	p := New(runtime, catalog, bridgeClient, &fakeRefresher{}, func(player int) string { return "test-strategist" }, nil, nil)

	p.onTurnStart(context.Background(), 3, 10)
	st := p.stateFor(3)
	require.Equal(t, 10, st.lastTurn)

	p.onTurnStart(context.Background(), 3, 10)
	p.onTurnStart(context.Background(), 3, 4)
	assert.Equal(t, 10, st.lastTurn, "a repeat or stale turn number must not advance lastTurn")
}

type assertionError string

func (e assertionError) Error() string { return string(e) }
