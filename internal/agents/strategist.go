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

package agents

import (
	"encoding/json"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agentruntime"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
)

const strategistTerminalRule = "You must end your turn by calling exactly one of set-strategy, set-flavors, or keep-status-quo, with a rationale. Use the other tools available to you to gather whatever context you need first."

// simpleStrategistPrompt is the one-shot design: read the whole report,
// decide, call a terminal tool.
const simpleStrategistPrompt = "You are the empire's strategist. Read the full per-turn report below and decide this turn's direction. " + strategistTerminalRule

// briefedStrategistPrompt asks the model to consult a briefing before
// deciding, rather than reading the raw event dump itself.
const briefedStrategistPrompt = "You are the empire's strategist. Call call_simple-briefer first to get a summary of this turn's events, then decide using that briefing instead of the raw events. " + strategistTerminalRule

// staffedStrategistPrompt asks the model to gather specialized briefings
// (or one combined briefing for a quiet turn) before deciding.
const staffedStrategistPrompt = "You are the empire's strategist, with a staff of specialized briefers. Follow the instruction at the top of the turn report to decide whether to call the combined briefer or all three specialized briefers, then decide using their briefings. " + strategistTerminalRule

// deliberativeStrategistPrompt asks the model to weigh several internal
// voices before committing, within the runtime's own step cap.
const deliberativeStrategistPrompt = "You are the empire's strategist. Before deciding, weigh this turn's events from at least three angles - military risk, economic opportunity, and diplomatic standing - as if consulting separate advisors, then reconcile them into one decision. " + strategistTerminalRule

// SimpleStrategist reads the full per-turn report once and decides,
// grounded on §4.A2's "simple strategist" design and the teacher's
// single-call leaf-agent shape.
type SimpleStrategist struct {
	baseAgent
}

// NewSimpleStrategist returns a SimpleStrategist with the given active
// tools (the catalog's mutation and read tools, not agent-as-tool wrappers)
// and model tier.
func NewSimpleStrategist(tools []string, tier string) *SimpleStrategist {
	return &SimpleStrategist{baseAgent{
		name:        "simple-strategist",
		description: "Decides this turn's strategy directly from the full per-turn report.",
		tools:       tools,
		tier:        tier,
	}}
}

func (s *SimpleStrategist) SystemPrompt(parameters map[string]any) string {
	return simpleStrategistPrompt
}

func (s *SimpleStrategist) GetInitialMessages(parameters, input map[string]any) []*llm.Message {
	report, _ := input["report"].(string)
	return []*llm.Message{
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(report)}},
	}
}

func (s *SimpleStrategist) StopCheck(history []*agentruntime.StepResult) (bool, string) {
	if calledTerminal(history) {
		return true, "terminal mutation tool called"
	}
	return false, ""
}

// BriefedStrategist calls the simple briefer as a tool before deciding,
// per §4.A2's "briefed strategist" design: "then behaves like the simple
// strategist with the briefing text as its context instead of raw event
// dumps."
type BriefedStrategist struct {
	baseAgent
}

// NewBriefedStrategist returns a BriefedStrategist. call_simple-briefer is
// added to tools automatically; tools should list the catalog's mutation
// and read tools.
func NewBriefedStrategist(tools []string, tier string) *BriefedStrategist {
	all := append([]string{"call_simple-briefer"}, tools...)
	return &BriefedStrategist{baseAgent{
		name:        "briefed-strategist",
		description: "Consults the turn briefer, then decides this turn's strategy from its briefing.",
		tools:       all,
		tier:        tier,
	}}
}

func (s *BriefedStrategist) SystemPrompt(parameters map[string]any) string {
	return briefedStrategistPrompt
}

func (s *BriefedStrategist) GetInitialMessages(parameters, input map[string]any) []*llm.Message {
	events, _ := input["events"]
	raw, _ := json.Marshal(events)
	text := "Turn events (pass these to call_simple-briefer):\n" + string(raw)
	if focus, ok := input["focus"].(string); ok && focus != "" {
		text = "Focus: " + focus + "\n\n" + text
	}
	return []*llm.Message{
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(text)}},
	}
}

func (s *BriefedStrategist) StopCheck(history []*agentruntime.StepResult) (bool, string) {
	if calledTerminal(history) {
		return true, "terminal mutation tool called"
	}
	return false, ""
}

// staffedStrategistThreshold is the serialized-event-size cutoff above
// which the staffed strategist is instructed to fan out to its three
// specialized briefers rather than ask for one combined briefing
// (§4.A2's "staffed strategist", "per-turn event volume exceeds roughly
// 5kB").
const staffedStrategistThreshold = 5 * 1024

// StaffedStrategist fans specialized briefers out in parallel for a busy
// turn, or falls back to a single combined briefing for a quiet one. The
// fan-out itself happens as ordinary concurrent tool calls within one step
// (agentruntime.Runtime.executeToolCalls runs a step's tool calls
// concurrently for exactly this reason), so this design needs no direct
// reference to the runtime - it only decides, in its initial message, which
// briefer(s) the model should call.
type StaffedStrategist struct {
	baseAgent
	threshold int
}

// NewStaffedStrategist returns a StaffedStrategist. call_military-briefer,
// call_economy-briefer, call_diplomacy-briefer, and call_combined-briefer
// are added to tools automatically; tools should list the catalog's
// mutation and read tools.
func NewStaffedStrategist(tools []string, tier string) *StaffedStrategist {
	all := append([]string{
		"call_military-briefer", "call_economy-briefer", "call_diplomacy-briefer", "call_combined-briefer",
	}, tools...)
	return &StaffedStrategist{
		baseAgent: baseAgent{
			name:        "staffed-strategist",
			description: "Fans out to specialized briefers on a busy turn, or one combined briefer on a quiet one, then decides.",
			tools:       all,
			tier:        tier,
		},
		threshold: staffedStrategistThreshold,
	}
}

func (s *StaffedStrategist) SystemPrompt(parameters map[string]any) string {
	return staffedStrategistPrompt
}

func (s *StaffedStrategist) GetInitialMessages(parameters, input map[string]any) []*llm.Message {
	events, _ := input["events"]
	raw, _ := json.Marshal(events)

	var instruction string
	if len(raw) > s.threshold {
		instruction = "This is a busy turn. Call call_military-briefer, call_economy-briefer, and call_diplomacy-briefer together before deciding."
	} else {
		instruction = "This is a quiet turn. Call call_combined-briefer before deciding."
	}

	text := instruction + "\n\nTurn events:\n" + string(raw)
	return []*llm.Message{
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(text)}},
	}
}

func (s *StaffedStrategist) StopCheck(history []*agentruntime.StepResult) (bool, string) {
	if calledTerminal(history) {
		return true, "terminal mutation tool called"
	}
	return false, ""
}

// DeliberativeStrategist weighs the turn from several angles within one
// system prompt before committing, per §4.A2's "deliberative strategist".
// It relies on the runtime's own maxSteps safety cap rather than a separate
// budget, since that cap already matches the design's intended depth.
type DeliberativeStrategist struct {
	baseAgent
}

// NewDeliberativeStrategist returns a DeliberativeStrategist.
func NewDeliberativeStrategist(tools []string, tier string) *DeliberativeStrategist {
	return &DeliberativeStrategist{baseAgent{
		name:        "deliberative-strategist",
		description: "Weighs this turn from several angles before deciding this turn's strategy.",
		tools:       tools,
		tier:        tier,
	}}
}

func (s *DeliberativeStrategist) SystemPrompt(parameters map[string]any) string {
	return deliberativeStrategistPrompt
}

func (s *DeliberativeStrategist) GetInitialMessages(parameters, input map[string]any) []*llm.Message {
	report, _ := input["report"].(string)
	return []*llm.Message{
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(report)}},
	}
}

func (s *DeliberativeStrategist) StopCheck(history []*agentruntime.StepResult) (bool, string) {
	if calledTerminal(history) {
		return true, "terminal mutation tool called"
	}
	return false, ""
}
