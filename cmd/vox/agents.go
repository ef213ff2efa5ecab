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
	"context"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agents"
)

// mutationToolNames and readToolNames are the catalog entries every
// strategist gets as active tools: the eight §6 mutation tools plus every
// read-only lookup, but never another agent's "call_*" wrapper (the
// runtime adds those automatically for strategists that delegate to a
// briefer, per agentruntime.effectiveTools).
func mutationToolNames() []string {
	names := make([]string, 0, len(mutationSpecs()))
	for _, s := range mutationSpecs() {
		names = append(names, s.name)
	}
	return names
}

func readToolNames() []string {
	return []string{
		"query-technologies", "query-units", "query-buildings", "query-policies",
		"query-resources", "query-civilizations",
		"read-player-info", "read-city-info", "read-tactical-zones", "read-opinions",
		"read-victory-progress", "read-player-options", "read-persona",
		"read-relationship-changes", "read-events", "list-tools",
	}
}

// strategistTools is the full non-delegating tool set every strategist
// variant starts from.
func strategistTools() []string {
	return append(mutationToolNames(), readToolNames()...)
}

// playerGraphSelector is the pipeline.AgentGraphSelector every player
// currently uses. §4.P1 leaves per-player agent-graph assignment as an
// operator concern the config layer doesn't model yet (an Open Question,
// recorded in DESIGN.md); until that lands, every player runs the
// staffed strategist, the middle tier between the cheapest (simple) and
// the most expensive (deliberative) of the four variants this repo
// implements.
func playerGraphSelector(player int) string {
	return "staffed-strategist"
}

// registerAgents registers the full A2 catalog on app.Runtime: all four
// strategist variants (a pipeline selects exactly one per player via
// playerGraphSelector, but every variant is available for experimentation
// through the RPC surface too) and the five briefers: the military,
// economy and diplomacy briefers are each filtered to the event category
// §4.P3's event-categories.json assigns them, while the simple and
// combined briefers take every event.
func registerAgents(app *App) {
	tools := strategistTools()

	app.Runtime.Register(agents.NewSimpleStrategist(tools, modelTierDefault))
	app.Runtime.Register(agents.NewBriefedStrategist(tools, modelTierDefault))
	app.Runtime.Register(agents.NewStaffedStrategist(tools, modelTierDefault))
	app.Runtime.Register(agents.NewDeliberativeStrategist(tools, modelTierDeliberative))

	categories := map[string][]string{}
	if catalog, err := app.Strategy.Catalog(context.Background()); err == nil {
		categories = catalog.EventCategories
	} else {
		app.Logger.Warn("agents: strategy catalog unavailable at startup, category briefers will match no events", "error", err)
	}

	app.Runtime.Register(agents.NewBriefer("simple-briefer", "Summarizes every event from this turn.", modelTierDefault, nil))
	app.Runtime.Register(agents.NewBriefer("military-briefer", "Summarizes this turn's military events.", modelTierDefault, agents.CategoryFilter(categories, "Military")))
	app.Runtime.Register(agents.NewBriefer("economy-briefer", "Summarizes this turn's economic events.", modelTierDefault, agents.CategoryFilter(categories, "Economic")))
	app.Runtime.Register(agents.NewBriefer("diplomacy-briefer", "Summarizes this turn's diplomatic events.", modelTierDefault, agents.CategoryFilter(categories, "Diplomacy")))
	app.Runtime.Register(agents.NewBriefer("combined-briefer", "Summarizes every event from a quiet turn in one pass.", modelTierDefault, nil))
}
