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

// Package observer publishes the two events the game observer overlay
// consumes: VoxAction(playerID, turn, actionType, summary, rationale) and
// VoxPlayerInfo(playerID, label), per §6's observer event schema. The core
// defines the shape; the overlay itself isn't this package's concern.
//
// Grounded on internal/pipeline's own fire-and-forget, log-on-failure call
// to the bridge ("playerReady"/signalReady) for the publish idiom, and on
// internal/bridge.Client.Call for the RPC shape itself.
package observer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agentruntime"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/bridge"
)

const (
	voxActionFunction     = "VoxAction"
	voxPlayerInfoFunction = "VoxPlayerInfo"
)

// actionTypeByTool maps a mutation bridge-action tool's catalog name to its
// observer action type. Tool names aren't pinned by the spec beyond their
// English description ("strategy / flavors / unset-flavors / research /
// policy / relationship / persona / status-quo"); this is this repo's own
// assumed naming, the same kind of assumption internal/pipeline documents
// for playerReadyFunction and internal/refresh documents for wireRow/wireEvent.
var actionTypeByTool = map[string]string{
	"set-strategy":     "strategy",
	"set-flavors":      "flavors",
	"unset-flavors":    "unset-flavors",
	"set-research":     "research",
	"set-policy":       "policy",
	"set-relationship": "relationship",
	"set-persona":      "persona",
	"keep-status-quo":  "status-quo",
}

// Publisher emits observer events through the bridge. It satisfies
// internal/pipeline.Observer (PublishDecision/PublishFallback) and also
// exposes PublishAction/PublishPlayerInfo directly, for emitting an event
// outside the normal tool-call scan. No code outside this package and its
// tests calls either of them directly.
//
// PublishDecision is the sole emitter for the eight named mutation tools:
// it scans the agent's tool calls once per turn, so a bridge-action tool's
// postHook for one of those eight names must not also call PublishAction,
// or the event fires twice.
type Publisher struct {
	bridge *bridge.Client
	logger *slog.Logger
}

// New returns a Publisher that calls out through bridgeClient.
func New(bridgeClient *bridge.Client, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{bridge: bridgeClient, logger: logger}
}

// PublishDecision scans result's tool calls for the named mutation tools
// and fires one VoxAction per match.
func (p *Publisher) PublishDecision(ctx context.Context, player, turn int, agent string, result *agentruntime.Result) {
	if result == nil {
		return
	}
	for _, call := range result.ToolCalls {
		actionType, ok := actionTypeByTool[call.Name]
		if !ok {
			continue
		}
		rationale := stringArg(call.Args, "rationale")
		summary := summarize(agent, call.Name, call.Args)
		p.PublishAction(ctx, player, turn, actionType, summary, rationale)
	}
}

// PublishFallback fires a single "status-quo" VoxAction explaining why the
// turn fell back to the safe default (§4.P1 step 5).
func (p *Publisher) PublishFallback(ctx context.Context, player, turn int, cause error) {
	summary := "fell back to keep-status-quo"
	rationale := "turn agent failed or was cancelled"
	if cause != nil {
		rationale = cause.Error()
	}
	p.PublishAction(ctx, player, turn, "status-quo", summary, rationale)
}

// PublishAction emits one VoxAction event.
func (p *Publisher) PublishAction(ctx context.Context, player, turn int, actionType, summary, rationale string) {
	if _, err := p.bridge.Call(ctx, voxActionFunction, []any{player, turn, actionType, summary, rationale}); err != nil {
		p.logger.Error("observer: failed to publish VoxAction", "player", player, "turn", turn, "action_type", actionType, "error", err)
	}
}

// PublishPlayerInfo emits a VoxPlayerInfo event carrying a player's display
// label for the overlay. Nothing outside this package's tests calls it.
func (p *Publisher) PublishPlayerInfo(ctx context.Context, player int, label string) {
	if _, err := p.bridge.Call(ctx, voxPlayerInfoFunction, []any{player, label}); err != nil {
		p.logger.Error("observer: failed to publish VoxPlayerInfo", "player", player, "error", err)
	}
}

// stringArg reads a string-valued key from args, trying both the given key
// and its capitalized form (tool argument casing isn't pinned by the spec).
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	capitalized := strings.ToUpper(key[:1]) + key[1:]
	if v, ok := args[capitalized].(string); ok {
		return v
	}
	return ""
}

// summarize builds a compact, human-readable description of a mutation
// call for the overlay: "<agent> called <tool> (k=v, k=v, ...)", omitting
// the rationale field (reported separately) and any nil/empty values.
func summarize(agent, toolName string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		if strings.EqualFold(k, "rationale") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := args[k]
		if v == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%s called %s", agent, toolName)
	}
	return fmt.Sprintf("%s called %s (%s)", agent, toolName, strings.Join(parts, ", "))
}
