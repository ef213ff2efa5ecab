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

// Package agentruntime implements the A1 agent runtime: a process-wide
// registry of agents, a tool catalog reference, and a step loop that calls
// an LLM, executes tool calls, and decides when a run is done.
//
// Grounded on pkg/agent/llmagent/flow.go's Flow.Run/runOneStep outer/inner
// loop shape (preprocess -> LLM call -> postprocess -> tool execution,
// repeated until a stop condition fires or a safety cap is hit) and
// pkg/agent/agent_call_tool.go's agent-as-tool wrapping. Unlike the
// teacher's Flow, which reads/writes conversation state through a session
// store, this runtime threads messages directly through the step loop: this
// system has no multi-turn session concept, each CallAgent is one bounded
// run.
package agentruntime

import (
	"context"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
)

// Agent is one entry in the A2 catalog. Implementations describe how to
// build the initial conversation, which tools are in scope, and when a run
// should stop; the runtime owns the mechanics of calling the model and
// dispatching tool calls.
type Agent interface {
	// Name uniquely identifies the agent, and is the suffix of its
	// agent-as-tool name (call_<Name>).
	Name() string

	// Description is surfaced on the agent's agent-as-tool wrapper.
	Description() string

	// SystemPrompt returns the agent's authored system message, rendered
	// against the current parameter record.
	SystemPrompt(parameters map[string]any) string

	// GetInitialMessages returns the messages seeding the conversation
	// beyond the system prompt: situation, options, past rationale,
	// reports, and so on, built from parameters and the call's input.
	GetInitialMessages(parameters, input map[string]any) []*llm.Message

	// ActiveTools is the whitelist of tool catalog entries (by name) this
	// agent may call. The runtime enforces that only these (plus
	// agent-as-tool wrappers the agent is allowed to reach) are exposed to
	// the model.
	ActiveTools() []string

	// ModelTier hints which configured model this agent should run
	// against (e.g. "default", "fast", "reasoning"); CallAgent resolves it
	// through the runtime's ModelResolver.
	ModelTier() string

	// PrepareStep runs before each LLM call and may narrow the active tool
	// whitelist, inject per-step messages, or override generation config
	// for that step alone. Returning a zero-value StepPrep makes no change.
	PrepareStep(step int, history []*StepResult) StepPrep

	// StopCheck inspects the most recent step and the full step history
	// and reports whether the run is done, and why. The runtime also
	// terminates on context cancellation and on reaching the safety cap
	// regardless of what StopCheck returns.
	StopCheck(history []*StepResult) (stop bool, reason string)

	// OutputSchema, if non-nil, requests structured output for the run's
	// final response instead of free text.
	OutputSchema() map[string]any
}

// StepPrep is PrepareStep's return value.
type StepPrep struct {
	// ToolWhitelist, if non-nil, replaces the active tool whitelist for
	// this step only.
	ToolWhitelist []string

	// ExtraMessages are appended to the conversation before the LLM call.
	ExtraMessages []*llm.Message

	// ConfigOverride, if non-nil, is merged over the run's base
	// GenerateConfig for this step only (via GenerateConfig.Clone).
	ConfigOverride *llm.GenerateConfig
}

// StepResult records one step loop iteration for StopCheck and for the
// span's final step-count/tool-call summary.
type StepResult struct {
	Response    *llm.Response
	ToolResults []llm.ToolResult
}

// Meaningful reports whether the step produced a tool call or non-empty
// text, the runtime's definition of §4.A1's "zero meaningful steps".
func (s *StepResult) Meaningful() bool {
	return s != nil && s.Response != nil && (s.Response.HasToolCalls() || s.Response.TextContent() != "")
}

// agentContextKey is unexported; callAgent stashes the in-flight call
// chain under it so agent-as-tool wrappers can refuse recursive self-calls.
type agentContextKey struct{}

func callChain(ctx context.Context) []string {
	chain, _ := ctx.Value(agentContextKey{}).([]string)
	return chain
}

func withCallChain(ctx context.Context, chain []string) context.Context {
	return context.WithValue(ctx, agentContextKey{}, chain)
}

func inChain(chain []string, name string) bool {
	for _, n := range chain {
		if n == name {
			return true
		}
	}
	return false
}
