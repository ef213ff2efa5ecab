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
	"encoding/json"
	"fmt"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agents"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/gamedb"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/knowledge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/tool"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// rulesConcept names one rules-database table C1's database-query tools
// expose, the way internal/gamedb/enum.go's EnumTableSpec names one table
// to fold into an enum catalog - here reused to drive a full-row Loader
// instead of just an ID->name mapping.
type rulesConcept struct {
	name        string
	table       string
	description string
}

var rulesConcepts = []rulesConcept{
	{"query-technologies", "Techs", "Search the technology tree: prerequisites, era, and unlocked effects."},
	{"query-units", "Units", "Search unit types: combat stats, costs, and required technology or policy."},
	{"query-buildings", "Buildings", "Search building types: costs, yields, and maintenance."},
	{"query-policies", "Policies", "Search social policies and the branches that unlock them."},
	{"query-resources", "Resources", "Search strategic, luxury, and bonus resources."},
	{"query-civilizations", "Civilizations", "Search civilizations and their unique traits."},
}

// conceptLoader returns a tool.Loader that reads every row of table from
// the rules gateway, localizes TXT_KEY_* text, and projects each row into a
// tool.Record keyed by its Type column (the key is left empty when a row
// has no string Type column).
func conceptLoader(gateway *gamedb.Gateway, table string) tool.Loader {
	return func(ctx context.Context) ([]tool.Record, error) {
		rows, err := gateway.Query(ctx, "SELECT * FROM "+table)
		if err != nil {
			return nil, voxerr.Wrap(voxerr.DependencyFailed, "tool.rules_query_failed", "failed to query "+table, err)
		}

		records := make([]tool.Record, 0, len(rows))
		for _, row := range rows {
			localized, err := gateway.LocalizeRecursive(ctx, map[string]any(row))
			if err != nil {
				return nil, voxerr.Wrap(voxerr.DependencyFailed, "tool.rules_localize_failed", "failed to localize "+table+" row", err)
			}
			data, _ := localized.(map[string]any)

			typeName, _ := data["Type"].(string)
			displayName, _ := data["Description"].(string)
			if displayName == "" {
				displayName = typeName
			}
			records = append(records, tool.Record{Type: typeName, Name: displayName, Data: data})
		}
		return records, nil
	}
}

// registerTools builds every C1 tool - rules-database lookups, knowledge
// reads, bridge-backed mutations, and the catalog-introspection tool - and
// registers them on app.Catalog.
func registerTools(app *App) error {
	for _, concept := range rulesConcepts {
		t, err := tool.NewDatabaseQueryTool(concept.name, concept.description, conceptLoader(app.Gateway, concept.table))
		if err != nil {
			return err
		}
		app.Catalog.Register(t)
	}

	if err := registerKnowledgeReadTools(app); err != nil {
		return err
	}
	if err := registerMutationTools(app); err != nil {
		return err
	}
	return registerIntrospectionTools(app)
}

// registerKnowledgeReadTools exposes every P2-ingested knowledge kind, plus
// the derived persona/relationship kinds agents.PersonaTracker and
// agents.EnvoyPeaceCheck maintain, as read-only tools (§4.C1).
func registerKnowledgeReadTools(app *App) error {
	type spec struct {
		name, description, kind string
		build                   func(name, description, kind string, store *knowledge.Store) (*tool.KnowledgeReadTool, error)
	}
	specs := []spec{
		{"read-player-info", "Read a player's latest public info snapshot.", "PlayerInfo", tool.NewTimedReadTool},
		{"read-city-info", "Read a city's latest public info snapshot.", "CityInfo", tool.NewTimedReadTool},
		{"read-tactical-zones", "Read the latest tactical zone assessment.", "TacticalZone", tool.NewTimedReadTool},
		{"read-opinions", "Read a player's recorded diplomatic opinions.", "Opinion", tool.NewTimedReadTool},
		{"read-victory-progress", "Read the shared victory-progress snapshot.", "VictoryProgress", tool.NewPublicReadTool},
		{"read-player-options", "Read the shared player-options snapshot.", "PlayerOptions", tool.NewPublicReadTool},
		{"read-persona", "Read a player's current persona weights.", personaKindForTools, tool.NewMutableReadTool},
		{"read-relationship-changes", "Read a player's running relationship-delta tally.", relationshipKindForTools, tool.NewMutableReadTool},
	}
	for _, s := range specs {
		t, err := s.build(s.name, s.description, s.kind, app.Store)
		if err != nil {
			return err
		}
		app.Catalog.Register(t)
	}

	events, err := tool.NewEventsReadTool("read-events", "Read game events recorded since a given turn.", app.Store, nil)
	if err != nil {
		return err
	}
	app.Catalog.Register(events)
	return nil
}

// personaKindForTools and relationshipKindForTools mirror the unexported
// kind constants internal/agents uses for the same two mutable-knowledge
// rows, so a read-only tool and the PersonaTracker/EnvoyPeaceCheck helpers
// that write them agree on the kind string without either package
// exporting it for the sole benefit of the other.
const (
	personaKindForTools      = "Persona"
	relationshipKindForTools = "RelationshipChanges"
)

// registerIntrospectionTools adds a single informational tool letting an
// agent list what the catalog currently offers. Only catalog tools are
// listed; the runtime's call_<agent> wrappers are not catalog entries and
// do not appear.
func registerIntrospectionTools(app *App) error {
	t, err := tool.NewInformationalTool("list-tools", "List every tool available in this session, with its kind and description.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, _ json.RawMessage) (any, error) {
			return app.Catalog.List(), nil
		})
	if err != nil {
		return err
	}
	app.Catalog.Register(t)
	return nil
}

// bridgeMutationSpec describes one of the eight §6 mutation tools: its
// name, the remote function it invokes, the argument schema an agent must
// supply, and the bridge script body that applies the mutation in-game and
// records it to knowledge.Store. Scripts are written against the same
// minimal DLL-call surface internal/remotefunc.Registry.Invoke expects
// (named arguments, a JSON-serializable result) - no original-language
// source survived distillation for these eight, so each script below is
// authored directly against the Civ5/BNW player-API surface the rest of
// the pack's getters already assume (Players[id], pPlayer:Get*()).
type bridgeMutationSpec struct {
	name, description, function string
	args                        []string
	script                      string
	argsSchema                  map[string]any
}

func intArgSchema(fields map[string]string) map[string]any {
	props := map[string]any{}
	required := make([]string, 0, len(fields))
	for field, desc := range fields {
		props[field] = map[string]any{"type": "integer", "description": desc}
		required = append(required, field)
	}
	return map[string]any{"type": "object", "properties": props, "required": required}
}

// optionalStringArgSchema is stringArgSchema without marking its fields
// required, for arguments an agent may omit (e.g. keep-status-quo's
// rationale, which the pipeline's own automatic fallback call never sets).
func optionalStringArgSchema(fields map[string]string) map[string]any {
	props := map[string]any{}
	for field, desc := range fields {
		props[field] = map[string]any{"type": "string", "description": desc}
	}
	return map[string]any{"type": "object", "properties": props, "required": []string{}}
}

func stringArgSchema(fields map[string]string) map[string]any {
	props := map[string]any{}
	required := make([]string, 0, len(fields))
	for field, desc := range fields {
		props[field] = map[string]any{"type": "string", "description": desc}
		required = append(required, field)
	}
	return map[string]any{"type": "object", "properties": props, "required": required}
}

func mergeSchemas(schemas ...map[string]any) map[string]any {
	props := map[string]any{}
	var required []string
	for _, s := range schemas {
		for k, v := range s["properties"].(map[string]any) {
			props[k] = v
		}
		for _, r := range s["required"].([]string) {
			required = append(required, r)
		}
	}
	return map[string]any{"type": "object", "properties": props, "required": required}
}

// mutationSpecs is the authoritative list of the eight mutation tools named
// in §6. internal/pipeline.runTurn conveys player/turn to the agent through
// CallAgent's parameters map, rendered into the prompt by
// agents.Agent.SystemPrompt/GetInitialMessages - the agent sees them as
// text, not as structured tool input - so none of these schemas declare a
// player or turn field; the bridge scripts instead read Game.GetActivePlayer()
// and Game.GetGameTurn() directly, since the script runs synchronously
// during that player's own AI turn processing. keep-status-quo is the one
// exception: internal/pipeline.fallback calls it directly, with no agent in
// the loop to read player/turn off of, so its schema is pinned to exactly
// the {player, turn} shape that call site constructs.
//
// Only keep-status-quo and set-relationship have test-scenario hints in the
// distilled spec; the rest follow the same rationale-carrying shape by
// analogy.
func mutationSpecs() []bridgeMutationSpec {
	rationale := map[string]string{"rationale": "One-sentence justification for the replay log"}

	return []bridgeMutationSpec{
		{
			name:        "set-strategy",
			description: "Adopt a grand strategy for the acting player.",
			function:    "setGrandStrategy",
			args:        []string{"strategy", "rationale"},
			argsSchema: mergeSchemas(
				stringArgSchema(map[string]string{"strategy": "Grand strategy name from the strategy catalog"}),
				stringArgSchema(rationale)),
			script: `local p = Players[Game.GetActivePlayer()]
p:SetAIStrategy(strategy)
return { strategy = strategy }`,
		},
		{
			name:        "set-flavors",
			description: "Set one or more AI flavor weights for the acting player.",
			function:    "setPlayerFlavors",
			args:        []string{"flavors", "rationale"},
			argsSchema: mergeSchemas(
				map[string]any{"type": "object", "properties": map[string]any{
					"flavors": map[string]any{"type": "object", "description": "Map of flavor name to integer weight", "additionalProperties": map[string]any{"type": "integer"}},
				}, "required": []string{"flavors"}},
				stringArgSchema(rationale)),
			script: `local p = Players[Game.GetActivePlayer()]
for flavor, weight in pairs(flavors) do
  p:SetFlavorOverride(flavor, weight)
end
return { flavors = flavors }`,
		},
		{
			name:        "unset-flavors",
			description: "Clear a previously set AI flavor override for the acting player.",
			function:    "unsetPlayerFlavors",
			args:        []string{"flavors", "rationale"},
			argsSchema: mergeSchemas(
				map[string]any{"type": "object", "properties": map[string]any{
					"flavors": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Flavor names to reset to their default"},
				}, "required": []string{"flavors"}},
				stringArgSchema(rationale)),
			script: `local p = Players[Game.GetActivePlayer()]
for _, flavor in ipairs(flavors) do
  p:ClearFlavorOverride(flavor)
end
return { flavors = flavors }`,
		},
		{
			name:        "set-research",
			description: "Set the acting player's current research target.",
			function:    "setResearch",
			args:        []string{"tech", "rationale"},
			argsSchema: mergeSchemas(
				stringArgSchema(map[string]string{"tech": "Technology enum type, e.g. TECH_CURRENCY"}),
				stringArgSchema(rationale)),
			script: `local p = Players[Game.GetActivePlayer()]
local teamTech = Teams[p:GetTeam()]:GetTeamTechs()
teamTech:SetResearchingTech(GameInfoTypes[tech], p:GetID())
return { tech = tech }`,
		},
		{
			name:        "set-policy",
			description: "Adopt a social policy for the acting player.",
			function:    "setPolicy",
			args:        []string{"policy", "rationale"},
			argsSchema: mergeSchemas(
				stringArgSchema(map[string]string{"policy": "Policy enum type, e.g. POLICY_HONOR"}),
				stringArgSchema(rationale)),
			script: `local p = Players[Game.GetActivePlayer()]
p:SetHasPolicy(GameInfoTypes[policy], true)
return { policy = policy }`,
		},
		{
			name:        "set-relationship",
			description: "Record a relationship adjustment the acting player intends toward a target player.",
			function:    "setRelationship",
			args:        []string{"target", "public", "private", "rationale"},
			argsSchema: mergeSchemas(intArgSchema(map[string]string{
				"target":  "Target player ID",
				"public":  "Public approach delta, -100 to 100",
				"private": "Private approach delta, -100 to 100",
			}), stringArgSchema(rationale)),
			script: `local p = Players[Game.GetActivePlayer()]
p:ChangeApproachTowardsUsGuess(target, public)
return { target = target, public = public, private = private }`,
		},
		{
			name:        "set-persona",
			description: "Nudge the acting player's persona weights by the given deltas.",
			function:    "setPersona",
			args:        []string{"deltas", "rationale"},
			argsSchema: mergeSchemas(
				map[string]any{"type": "object", "properties": map[string]any{
					"deltas": map[string]any{"type": "object", "description": "Map of persona trait to signed delta", "additionalProperties": map[string]any{"type": "number"}},
				}, "required": []string{"deltas"}},
				stringArgSchema(rationale)),
			script: `return { player = Game.GetActivePlayer(), turn = Game.GetGameTurn(), deltas = deltas }`,
		},
		{
			name:        "keep-status-quo",
			description: "Record that the acting player made no strategic change this turn, whether chosen deliberately or applied as the automatic fallback for a failed or cancelled turn.",
			function:    "keepStatusQuo",
			args:        []string{"player", "turn", "rationale"},
			argsSchema: mergeSchemas(intArgSchema(map[string]string{
				"player": "Acting player ID",
				"turn":   "Current game turn",
			}), optionalStringArgSchema(rationale)),
			script: `return { player = player, turn = turn }`,
		},
	}
}

// registerMutationTools registers the eight bridge-backed mutation tools.
// set-persona's postHook reads the acting player/turn/deltas back out of
// the bridge script's own result and feeds them to agents.PersonaTracker,
// since persona weights live in knowledge.Store rather than the game's own
// save state and nothing else on this call path carries player/turn.
func registerMutationTools(app *App) error {
	persona := agents.NewPersonaTracker(app.Store)

	for _, spec := range mutationSpecs() {
		spec := spec
		if err := app.Registry.Define(spec.function, spec.args, spec.script); err != nil {
			return fmt.Errorf("tools: defining %s: %w", spec.function, err)
		}

		var postHook func(ctx context.Context, args map[string]any, raw json.RawMessage) (any, error)
		if spec.name == "set-persona" {
			// set-persona's schema carries no player/turn field (see
			// mutationSpecs), so the acting player and turn come back from
			// the bridge script's own Game.GetActivePlayer()/GetGameTurn()
			// call, decoded here from the raw result rather than from args.
			postHook = func(ctx context.Context, args map[string]any, raw json.RawMessage) (any, error) {
				var decoded struct {
					Player int                `json:"player"`
					Turn   int                `json:"turn"`
					Deltas map[string]float64 `json:"deltas"`
				}
				if err := json.Unmarshal(raw, &decoded); err != nil {
					return nil, voxerr.Wrap(voxerr.Internal, "tool.set_persona_decode", "failed to decode set-persona bridge result", err)
				}
				return persona.Nudge(ctx, decoded.Player, decoded.Turn, decoded.Deltas)
			}
		}

		t, err := tool.NewBridgeActionTool(spec.name, spec.description, spec.function, app.Registry, spec.argsSchema, postHook)
		if err != nil {
			return err
		}
		app.Catalog.Register(t)
	}
	return nil
}
