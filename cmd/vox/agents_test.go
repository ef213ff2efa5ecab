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

func TestMutationToolNames_MatchesMutationSpecs(t *testing.T) {
	names := mutationToolNames()
	specs := mutationSpecs()

	require.Len(t, names, len(specs))
	for _, spec := range specs {
		require.Contains(t, names, spec.name)
	}
}

func TestStrategistTools_CombinesMutationAndReadToolsWithoutOverlap(t *testing.T) {
	tools := strategistTools()

	seen := map[string]bool{}
	for _, name := range tools {
		require.False(t, seen[name], "duplicate tool name %s in strategist tool set", name)
		seen[name] = true
	}

	require.Contains(t, tools, "set-strategy")
	require.Contains(t, tools, "keep-status-quo")
	require.Contains(t, tools, "read-player-info")
	require.Contains(t, tools, "list-tools")
}

func TestPlayerGraphSelector_SameGraphForEveryPlayer(t *testing.T) {
	require.Equal(t, "staffed-strategist", playerGraphSelector(0))
	require.Equal(t, "staffed-strategist", playerGraphSelector(7))
	require.Equal(t, playerGraphSelector(1), playerGraphSelector(22))
}
