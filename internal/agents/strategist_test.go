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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agentruntime"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
)

func stepCalling(name string) *agentruntime.StepResult {
	return &agentruntime.StepResult{
		Response: &llm.Response{
			ToolCalls: []llm.ToolCall{{ID: "1", Name: name}},
		},
	}
}

func TestSimpleStrategist_StopCheckRequiresTerminalTool(t *testing.T) {
	s := NewSimpleStrategist([]string{"set-strategy", "set-flavors", "keep-status-quo"}, "default")

	stop, _ := s.StopCheck(nil)
	assert.False(t, stop, "no steps yet, must not stop")

	history := []*agentruntime.StepResult{stepCalling("get-report")}
	stop, _ = s.StopCheck(history)
	assert.False(t, stop, "a non-terminal tool call must not end the run")

	history = append(history, stepCalling("set-strategy"))
	stop, reason := s.StopCheck(history)
	assert.True(t, stop, "calling set-strategy must end the run")
	assert.NotEmpty(t, reason)
}

func TestSimpleStrategist_GetInitialMessagesCarriesReport(t *testing.T) {
	s := NewSimpleStrategist(nil, "default")
	messages := s.GetInitialMessages(nil, map[string]any{"report": "turn 42 report text"})
	if assert.Len(t, messages, 1) {
		assert.Equal(t, llm.RoleUser, messages[0].Role)
		assert.Equal(t, "turn 42 report text", messages[0].Parts[0].Text)
	}
}

func TestStaffedStrategist_PicksFanOutAboveThreshold(t *testing.T) {
	s := NewStaffedStrategist(nil, "default")

	bigEvents := make([]any, 0, 500)
	for i := 0; i < 500; i++ {
		bigEvents = append(bigEvents, map[string]any{"type": "combat", "detail": "a reasonably sized event payload entry"})
	}
	messages := s.GetInitialMessages(nil, map[string]any{"events": bigEvents})
	assert.Contains(t, messages[0].Parts[0].Text, "call_military-briefer")

	smallMessages := s.GetInitialMessages(nil, map[string]any{"events": []any{map[string]any{"type": "combat"}}})
	assert.Contains(t, smallMessages[0].Parts[0].Text, "call_combined-briefer")
}
