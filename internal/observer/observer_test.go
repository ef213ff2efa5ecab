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

package observer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agentruntime"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/bridge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
)

// capturingBridge records every {function, args} call it receives.
type capturedCall struct {
	function string
	args     []any
}

func capturingBridge(t *testing.T) (*bridge.Client, *[]capturedCall, *sync.Mutex) {
	t.Helper()
	var mu sync.Mutex
	var calls []capturedCall

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Function string `json:"function"`
			Args     []any  `json:"args"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		mu.Lock()
		calls = append(calls, capturedCall{function: body.Function, args: body.Args})
		mu.Unlock()

		json.NewEncoder(w).Encode(bridge.Result{Success: true, Result: json.RawMessage("null")})
	}))
	t.Cleanup(srv.Close)
	return bridge.New(srv.URL), &calls, &mu
}

func TestPublishDecision_FiresVoxActionForEachMutationToolCall(t *testing.T) {
	bridgeClient, calls, mu := capturingBridge(t)
	p := New(bridgeClient, nil)

	result := &agentruntime.Result{
		ToolCalls: []llm.ToolCall{
			{Name: "set-strategy", Args: map[string]any{"GrandStrategy": "Conquest", "rationale": "go to war"}},
			{Name: "database_query", Args: map[string]any{"Search": "TECH_AGRICULTURE"}},
			{Name: "set-relationship", Args: map[string]any{"Target": 3, "rationale": "deter"}},
		},
	}

	p.PublishDecision(context.Background(), 0, 5, "simple-strategist", result)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *calls, 2, "only the two recognized mutation tool calls should fire VoxAction; database_query must not")

	first := (*calls)[0]
	require.Equal(t, voxActionFunction, first.function)
	require.EqualValues(t, 0, first.args[0])
	require.EqualValues(t, 5, first.args[1])
	require.Equal(t, "strategy", first.args[2])
	require.Equal(t, "go to war", first.args[4])

	second := (*calls)[1]
	require.Equal(t, "relationship", second.args[2])
	require.Equal(t, "deter", second.args[4])
}

func TestPublishDecision_IgnoresNilResult(t *testing.T) {
	bridgeClient, calls, mu := capturingBridge(t)
	p := New(bridgeClient, nil)

	p.PublishDecision(context.Background(), 0, 1, "simple-strategist", nil)

	mu.Lock()
	defer mu.Unlock()
	require.Empty(t, *calls)
}

func TestPublishFallback_FiresStatusQuoAction(t *testing.T) {
	bridgeClient, calls, mu := capturingBridge(t)
	p := New(bridgeClient, nil)

	p.PublishFallback(context.Background(), 2, 7, errors.New("bridge error"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, voxActionFunction, call.function)
	require.EqualValues(t, 2, call.args[0])
	require.EqualValues(t, 7, call.args[1])
	require.Equal(t, "status-quo", call.args[2])
	require.Equal(t, "bridge error", call.args[4])
}

func TestPublishPlayerInfo_CallsBridgeDirectly(t *testing.T) {
	bridgeClient, calls, mu := capturingBridge(t)
	p := New(bridgeClient, nil)

	p.PublishPlayerInfo(context.Background(), 4, "The Zealous Conqueror")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, voxPlayerInfoFunction, call.function)
	require.EqualValues(t, 4, call.args[0])
	require.Equal(t, "The Zealous Conqueror", call.args[1])
}

func TestPublishAction_LogsRatherThanPanicsOnBridgeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(bridge.Result{Success: false, Error: &bridge.WireError{Code: "bad", Message: "nope"}})
	}))
	defer srv.Close()

	p := New(bridge.New(srv.URL), nil)
	p.PublishAction(context.Background(), 0, 1, "strategy", "summary", "rationale")
}
