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

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntArgSchema_MarksEveryFieldRequired(t *testing.T) {
	schema := intArgSchema(map[string]string{"target": "target player ID"})

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "target")

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	require.ElementsMatch(t, []string{"target"}, required)
}

func TestOptionalStringArgSchema_NeverRequiresItsFields(t *testing.T) {
	schema := optionalStringArgSchema(map[string]string{"rationale": "justification"})

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	require.Empty(t, required)

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "rationale")
}

func TestMergeSchemas_CombinesPropertiesAndRequired(t *testing.T) {
	merged := mergeSchemas(
		intArgSchema(map[string]string{"target": "target player ID"}),
		stringArgSchema(map[string]string{"rationale": "justification"}),
	)

	props, ok := merged["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "target")
	require.Contains(t, props, "rationale")

	required, ok := merged["required"].([]string)
	require.True(t, ok)
	require.ElementsMatch(t, []string{"target", "rationale"}, required)
}

// TestMutationSpecs_OnlyKeepStatusQuoCarriesPlayerOrTurn pins the mutation
// tool argument-schema design recorded in DESIGN.md: the agent never echoes
// player/turn back through a tool call except for keep-status-quo, which
// internal/pipeline.fallback calls directly with exactly that shape.
func TestMutationSpecs_OnlyKeepStatusQuoCarriesPlayerOrTurn(t *testing.T) {
	for _, spec := range mutationSpecs() {
		props, ok := spec.argsSchema["properties"].(map[string]any)
		require.True(t, ok, "spec %s has no properties map", spec.name)

		if spec.name == "keep-status-quo" {
			require.Contains(t, props, "player")
			require.Contains(t, props, "turn")
			required, ok := spec.argsSchema["required"].([]string)
			require.True(t, ok)
			require.ElementsMatch(t, []string{"player", "turn"}, required)
			continue
		}

		require.NotContains(t, props, "player", "spec %s should not declare player", spec.name)
		require.NotContains(t, props, "turn", "spec %s should not declare turn", spec.name)
	}
}

func TestMutationSpecs_EveryNameIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, spec := range mutationSpecs() {
		require.False(t, seen[spec.name], "duplicate mutation tool name %s", spec.name)
		seen[spec.name] = true
	}
	require.Len(t, seen, 8)
}

func TestMutationSpecs_KeepStatusQuoRationaleIsOptional(t *testing.T) {
	for _, spec := range mutationSpecs() {
		if spec.name != "keep-status-quo" {
			continue
		}
		required, ok := spec.argsSchema["required"].([]string)
		require.True(t, ok)
		require.NotContains(t, required, "rationale")
	}
}
