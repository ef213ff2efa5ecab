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
	"fmt"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agentruntime"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
)

const envoySystemPrompt = "You review a player's relationship history across a prior session, drawing on the turn/phase summaries and any flagged peace-overture candidates, and write a short diplomatic assessment: whether a peace overture now looks warranted, to whom, and why. Call no tools; respond with the assessment only."

// Envoy is the single-shot agent that narrates diplomatic opportunities
// surfaced from a completed session, grounded on a player's PeaceOverture
// candidates (EnvoyPeaceCheck, persona.go) plus the telepathist's phase
// summaries for narrative context. Per §4.A2's "specified for completeness
// but not part of the live turn loop" note, internal/pipeline never runs
// it; no command in this repository registers or calls it either (the
// telepathist CLI subcommand registers only the Telepathist). Unlike every
// live strategist, it never calls a
// mutation tool itself; a human or a future live strategist run decides
// whether to act on its assessment.
//
// Input keys:
//   - "overtures": []PeaceOverture-shaped values, this player's flagged candidates
//   - "phaseSummary": string, the telepathist's narrative for the covered turn range (may be absent)
type Envoy struct {
	baseAgent
}

// NewEnvoy returns an Envoy agent under name/tier.
func NewEnvoy(name, tier string) *Envoy {
	return &Envoy{baseAgent: baseAgent{
		name:        name,
		description: "Narrates diplomatic/peace-overture opportunities from a completed session's history.",
		tier:        tier,
	}}
}

func (e *Envoy) SystemPrompt(parameters map[string]any) string {
	return envoySystemPrompt
}

func (e *Envoy) GetInitialMessages(parameters, input map[string]any) []*llm.Message {
	overtures := input["overtures"]
	raw, _ := json.Marshal(overtures)
	text := fmt.Sprintf("Flagged peace-overture candidates:\n%s", raw)

	if phase, ok := input["phaseSummary"].(string); ok && phase != "" {
		text += "\n\nPhase summary for context:\n" + phase
	}

	return []*llm.Message{
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(text)}},
	}
}

func (e *Envoy) StopCheck(history []*agentruntime.StepResult) (bool, string) {
	return len(history) >= 1, "envoy is single-shot"
}
