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

const telepathistSystemPrompt = "You read one session's recorded spans (agent calls, tool calls, LLM calls) for a turn or a range of turns and write two summaries: a one-sentence shortSummary and a fuller paragraph fullSummary. Call no tools; respond only through the requested structured output."

var telepathistOutputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"shortSummary": map[string]any{"type": "string"},
		"fullSummary":  map[string]any{"type": "string"},
	},
	"required": []string{"shortSummary", "fullSummary"},
}

// Telepathist is the single-shot agent that turns a prior session's
// recorded spans into the turn/phase summaries internal/telepathist
// persists. It never reads the telemetry database itself - a caller (the
// telepathist CLI's setup pass) hands it the span rows already loaded,
// matching every other leaf agent in this package taking data through
// input rather than reaching for a store directly. Per §4.A2's
// "specified for completeness but not part of the live turn loop" note,
// this agent is registered with the runtime but only ever invoked from the
// offline setup pass, never from internal/pipeline.
//
// Input keys:
//   - "spans": []any, the raw span rows covering the turn or turn range
//   - "priorSummary": string, the previous turn/phase summary for continuity (may be absent)
type Telepathist struct {
	baseAgent
}

// NewTelepathist returns a Telepathist agent under name/tier.
func NewTelepathist(name, tier string) *Telepathist {
	return &Telepathist{baseAgent: baseAgent{
		name:        name,
		description: "Summarizes a prior session's recorded telemetry spans into turn/phase narratives.",
		tier:        tier,
	}}
}

func (t *Telepathist) SystemPrompt(parameters map[string]any) string {
	return telepathistSystemPrompt
}

func (t *Telepathist) GetInitialMessages(parameters, input map[string]any) []*llm.Message {
	spans, _ := input["spans"].([]any)
	raw, _ := json.Marshal(spans)
	text := "Recorded spans:\n" + string(raw)

	if prior, ok := input["priorSummary"].(string); ok && prior != "" {
		text += "\n\nPrior summary for continuity:\n" + prior
	}

	return []*llm.Message{
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(text)}},
	}
}

func (t *Telepathist) StopCheck(history []*agentruntime.StepResult) (bool, string) {
	return len(history) >= 1, "telepathist is single-shot"
}

func (t *Telepathist) OutputSchema() map[string]any { return telepathistOutputSchema }
