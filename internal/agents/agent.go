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

// Package agents implements the A2 agent catalog: the strategist designs
// (simple, briefed, staffed, deliberative), their briefers, the summarizer
// utility, and the persona/peace-overture bookkeeping the strategists read
// when composing rationale.
//
// §4.A2 notes that original_source carries no retrievable source for this
// module, so these designs are grounded directly in spec.md's own named
// knobs and in the teacher's leaf-agent shape
// (pkg/agent/llmagent/llmagent.go: a system prompt, an input schema, a
// single model call) generalized across four control-flow variants instead
// of one.
package agents

import (
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agentruntime"
)

// terminalTools is the set of mutation tools that end a strategist's turn;
// every strategist design lets the run stop on its own (as opposed to the
// runtime's safety cap or a cancellation) once at least one of them has
// been called. Calling more than one of them in a run is not rejected.
var terminalTools = map[string]bool{
	"set-strategy":    true,
	"set-flavors":     true,
	"keep-status-quo": true,
}

// baseAgent supplies the mechanical parts of agentruntime.Agent shared by
// every design in this catalog: identity, tool whitelist, model tier hint,
// and a PrepareStep that makes no per-step change. Concrete designs embed
// it and override SystemPrompt, GetInitialMessages, StopCheck, and (for the
// few that request structured output) OutputSchema.
type baseAgent struct {
	name        string
	description string
	tools       []string
	tier        string
}

func (b *baseAgent) Name() string          { return b.name }
func (b *baseAgent) Description() string   { return b.description }
func (b *baseAgent) ActiveTools() []string { return b.tools }
func (b *baseAgent) ModelTier() string     { return b.tier }

func (b *baseAgent) PrepareStep(step int, history []*agentruntime.StepResult) agentruntime.StepPrep {
	return agentruntime.StepPrep{}
}

func (b *baseAgent) OutputSchema() map[string]any { return nil }

// calledTerminal reports whether any step in history called at least one
// of the strategist's terminal mutation tools (set-strategy / set-flavors /
// keep-status-quo). It does not check that only one of them was called.
func calledTerminal(history []*agentruntime.StepResult) bool {
	for _, step := range history {
		if step.Response == nil {
			continue
		}
		for _, call := range step.Response.ToolCalls {
			if terminalTools[call.Name] {
				return true
			}
		}
	}
	return false
}
