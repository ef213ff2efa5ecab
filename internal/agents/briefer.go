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

const brieferSystemPrompt = "You read this turn's events and write one paragraph summarizing what happened, comparing it to the past briefing when one is given. Call no tools; respond with the paragraph only."

// EventCategoryFilter reports whether an event of the given type belongs to
// a briefer's area. A nil filter means "everything" (the combined briefer).
// The category assignment itself is authored data (grand-strategy.json's
// siblings, §4.P3), so briefers take the filter as a dependency rather than
// loading a catalog themselves.
type EventCategoryFilter func(eventType string) bool

// CategoryFilter builds an EventCategoryFilter from an event-type to
// category-list mapping (the shape §4.P3's category catalogs decode into)
// and the category a specialized briefer cares about.
func CategoryFilter(eventCategories map[string][]string, category string) EventCategoryFilter {
	return func(eventType string) bool {
		for _, c := range eventCategories[eventType] {
			if c == category {
				return true
			}
		}
		return false
	}
}

// Briefer is the single-shot agent that turns a pile of per-turn events
// into one paragraph, optionally filtered to one category first
// (Military/Economy/Diplomacy) and optionally compared against a past
// briefing. It is grounded on the teacher's leaf llmagent shape
// (pkg/agent/llmagent/llmagent.go): one system prompt, one call, no tool
// loop of its own.
//
// Input keys:
//   - "events": []any, the raw per-turn event list
//   - "pastBriefing": string, the prior briefing text for comparison (may be absent)
//   - "instruction": string, an optional extra focus instruction
//
// Past-briefing lookup and new-briefing storage are the caller's job
// (agentruntime.Agent has no I/O hooks by design, §4.A1), so a strategist
// or the pipeline reads knowledge.Store before calling and writes the
// result back after.
type Briefer struct {
	baseAgent
	filter EventCategoryFilter
}

// NewBriefer returns a Briefer under name/description/tier, filtering
// events with filter (nil for the combined, unfiltered briefer).
func NewBriefer(name, description, tier string, filter EventCategoryFilter) *Briefer {
	return &Briefer{
		baseAgent: baseAgent{name: name, description: description, tier: tier},
		filter:    filter,
	}
}

func (b *Briefer) SystemPrompt(parameters map[string]any) string {
	return brieferSystemPrompt
}

func (b *Briefer) GetInitialMessages(parameters, input map[string]any) []*llm.Message {
	events, _ := input["events"].([]any)

	filtered := make([]any, 0, len(events))
	for _, e := range events {
		if b.filter == nil {
			filtered = append(filtered, e)
			continue
		}
		em, ok := e.(map[string]any)
		if !ok {
			continue
		}
		eventType, _ := em["type"].(string)
		if b.filter(eventType) {
			filtered = append(filtered, e)
		}
	}

	raw, _ := json.Marshal(filtered)
	text := "Turn events:\n" + string(raw)

	if past, ok := input["pastBriefing"].(string); ok && past != "" {
		text += "\n\nPast briefing for comparison:\n" + past
	}
	if instruction, ok := input["instruction"].(string); ok && instruction != "" {
		text = instruction + "\n\n" + text
	}

	return []*llm.Message{
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(text)}},
	}
}

// StopCheck always stops after the first step: a briefer is a leaf
// summarizer, never a tool user.
func (b *Briefer) StopCheck(history []*agentruntime.StepResult) (bool, string) {
	return len(history) >= 1, "briefer is single-shot"
}
