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

package agentruntime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/tool"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// agentCallTool prefix, mirroring §4.A1's "an entry call_<otherAgent> for
// every other registered agent".
const agentCallPrefix = "call_"

// effectiveTools builds the per-call tool map: every catalog tool plus an
// agent-as-tool wrapper for every other registered agent, guarded against
// the calling agent wrapping itself. Agents here can call each other by
// name and the call graph isn't guaranteed acyclic by construction, so the
// runtime enforces it via the call chain threaded through ctx.
func (r *Runtime) effectiveTools(ctx context.Context, calling Agent) map[string]tool.Tool {
	chain := callChain(ctx)
	toolMap := make(map[string]tool.Tool)

	for _, name := range r.catalog.List() {
		t, err := r.catalog.Get(name.Name)
		if err == nil {
			toolMap[t.Name()] = t
		}
	}

	for _, name := range r.names() {
		if name == calling.Name() || inChain(chain, name) {
			continue
		}
		sub, err := r.lookup(name)
		if err != nil {
			continue
		}
		wrapped, err := r.wrapAgentAsTool(sub)
		if err != nil {
			continue
		}
		toolMap[wrapped.Name()] = wrapped
	}

	return toolMap
}

func (r *Runtime) wrapAgentAsTool(a Agent) (tool.Tool, error) {
	invoker := tool.AgentInvoker(func(ctx context.Context, agentName string, input map[string]any) (map[string]any, error) {
		res, err := r.CallAgent(ctx, agentName, input, map[string]any{}, a.OutputSchema())
		if err != nil {
			return nil, err
		}
		if res.Structured != nil {
			return res.Structured, nil
		}
		return map[string]any{"output": res.Text}, nil
	})

	inputSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{"type": "object"},
		},
	}

	return tool.NewAgentCallableTool(agentCallPrefix+a.Name(), a.Description(), a.Name(), invoker, inputSchema, a.OutputSchema())
}

// toolDefinitions projects toolMap's entries named in active into the
// llm.ToolDefinition shape a generation request carries, enforcing §4.A2's
// "only those appear in the LLM's tool list for that agent".
func toolDefinitions(toolMap map[string]tool.Tool, active []string) []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(active))
	for _, name := range active {
		t, ok := toolMap[name]
		if !ok {
			continue
		}
		var params map[string]any
		if s := t.InputSchema(); s != nil {
			params = s.Document
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		})
	}
	return defs
}

// executeToolCalls dispatches every tool call in calls through toolMap,
// translating each outcome into an llm.ToolResult so it can be fed back
// into the conversation. A tool name missing from toolMap, or a tool that
// fails, returns an error result rather than aborting the step, matching
// Flow's "denial message added to history so the model learns not to
// retry" pattern for tool failures generally.
//
// Calls within a step run concurrently, not one at a time: the staffed
// strategist fans out to its three specialized briefers in a single step,
// and those are independent agent-as-tool calls with no reason to
// serialize (§4.A2 "the runtime must not serialize them").
func (r *Runtime) executeToolCalls(ctx context.Context, toolMap map[string]tool.Tool, calls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = r.executeOne(ctx, toolMap, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (r *Runtime) executeOne(ctx context.Context, toolMap map[string]tool.Tool, call llm.ToolCall) llm.ToolResult {
	t, ok := toolMap[call.Name]
	if !ok {
		return llm.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Error: fmt.Sprintf("tool %q is not active for this agent", call.Name)}
	}

	args, err := json.Marshal(call.Args)
	if err != nil {
		return llm.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Error: err.Error()}
	}

	if s := t.InputSchema(); s != nil {
		raw := args
		if call.Args == nil {
			raw = nil
		}
		if _, err := s.Validate(raw); err != nil {
			return llm.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Error: err.Error()}
		}
	}

	out, err := t.Execute(ctx, args)
	if err != nil {
		return llm.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Error: err.Error()}
	}

	content, err := json.Marshal(out)
	if err != nil {
		return llm.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Error: err.Error()}
	}

	return llm.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Content: string(content)}
}

// initialMessages assembles the seed conversation: a system message carrying
// the agent's authored prompt, followed by whatever agent.GetInitialMessages
// returns for this input (§4.A1 step 5). The system prompt itself travels on
// Request.SystemInstruction rather than as a message, so this only returns
// the agent-contributed messages.
func (r *Runtime) initialMessages(agent Agent, parameters, input map[string]any) []*llm.Message {
	return agent.GetInitialMessages(parameters, input)
}

// parseStructured decodes text as JSON when outputSchema is requested, the
// structured-output path of §4.A1 step 8.
func parseStructured(text string, outputSchema map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "agentruntime.structured_output_parse", "failed to parse structured output as JSON", err)
	}
	return out, nil
}
