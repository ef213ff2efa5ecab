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

// Package refresh implements the P2 knowledge refresh: on every turn
// transition, it invokes the bridge's well-known read-only getter scripts,
// localizes their results, and ingests them into the knowledge store under
// the correct table family, then hands the turn pipeline (P1) the
// resulting per-turn report as the agent's input map.
//
// Grounded on reusing internal/bridge.Client.Call for the getter
// invocations and internal/gamedb's recursive localizer for ingest-time
// localization, per this repo's existing P2 design note.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/bridge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/knowledge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// family is which knowledge table a getter's rows belong in.
type family string

const (
	familyTimed  family = "timed"
	familyPublic family = "public"
	familyEvents family = "events"
)

// getterSpec names one bridge getter script and where its rows land.
type getterSpec struct {
	function string
	kind     string
	family   family
}

// defaultGetters is the fixed list §4.P2 names: player informations, city
// informations, tactical military zones, victory progress, player options,
// per-player opinions, events since last turn. Player/city/tactical/opinion
// snapshots are turn-scoped history (timed); victory progress and player
// options are a single current-state row per entity (public); events are
// the append-only log.
var defaultGetters = []getterSpec{
	{function: "getPlayerInformations", kind: "PlayerInfo", family: familyTimed},
	{function: "getCityInformations", kind: "CityInfo", family: familyTimed},
	{function: "getTacticalZones", kind: "TacticalZone", family: familyTimed},
	{function: "getVictoryProgress", kind: "VictoryProgress", family: familyPublic},
	{function: "getPlayerOptions", kind: "PlayerOptions", family: familyPublic},
	{function: "getOpinions", kind: "Opinion", family: familyTimed},
	{function: "getEventsSinceLastTurn", kind: "", family: familyEvents},
}

// Localizer resolves TXT_KEY_ tokens during ingest. internal/gamedb.Gateway
// satisfies this structurally.
type Localizer interface {
	LocalizeRecursive(ctx context.Context, value any) (any, error)
}

// wireRow is the shape one timed/public getter row arrives in over the
// bridge.
type wireRow struct {
	EntityKey  string         `json:"entityKey"`
	Payload    map[string]any `json:"payload"`
	Visibility map[int]int    `json:"visibility,omitempty"`
}

// wireEvent is the shape one event-getter row arrives in over the bridge.
// Slot is the event's position within its turn's ID space; Dynamic selects
// the high (derived-event) half of that space, keeping native and derived
// events disjoint per §3.
type wireEvent struct {
	Slot       int            `json:"slot"`
	Dynamic    bool           `json:"dynamic"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	Visibility map[int]int    `json:"visibility,omitempty"`
}

// Refresher ingests one turn's worth of bridge getters into the knowledge
// store and builds the per-turn report P1 hands to the agent runtime as
// input. It satisfies internal/pipeline.Refresher structurally.
type Refresher struct {
	bridge    *bridge.Client
	localizer Localizer
	store     *knowledge.Store
	getters   []getterSpec
	logger    *slog.Logger
}

// New returns a Refresher using the default getter list.
func New(bridgeClient *bridge.Client, localizer Localizer, store *knowledge.Store, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{bridge: bridgeClient, localizer: localizer, store: store, getters: defaultGetters, logger: logger}
}

// Refresh runs every getter for player/turn, ingests the results, and
// returns the per-turn report as the agent's input map (§4.P1 step 1).
func (r *Refresher) Refresh(ctx context.Context, player, turn int) (map[string]any, error) {
	for _, g := range r.getters {
		if err := r.ingest(ctx, g, player, turn); err != nil {
			return nil, voxerr.Wrap(voxerr.DependencyFailed, "refresh.getter_failed", fmt.Sprintf("getter %q failed", g.function), err)
		}
	}

	events, err := r.store.QueryEvents(ctx, knowledge.EventFilter{
		TurnRange: knowledge.TurnRange{From: turn, To: turn},
		Viewer:    player,
	})
	if err != nil {
		return nil, err
	}

	eventList := make([]any, 0, len(events))
	for _, e := range events {
		eventList = append(eventList, map[string]any{
			"id": e.ID, "turn": e.Turn, "type": e.Type, "payload": e.Payload,
		})
	}

	report, err := json.Marshal(eventList)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "refresh.marshal_report", "failed to render turn report", err)
	}

	return map[string]any{
		"player": player,
		"turn":   turn,
		"events": eventList,
		"report": string(report),
	}, nil
}

func (r *Refresher) ingest(ctx context.Context, g getterSpec, player, turn int) error {
	result, err := r.bridge.Call(ctx, g.function, []any{player, turn})
	if err != nil {
		return err
	}

	switch g.family {
	case familyTimed:
		return r.ingestTimed(ctx, g, turn, result.Result)
	case familyPublic:
		return r.ingestPublic(ctx, g, result.Result)
	case familyEvents:
		return r.ingestEvents(ctx, turn, result.Result)
	default:
		return voxerr.New(voxerr.Internal, "refresh.unknown_family", fmt.Sprintf("getter %q has unknown table family %q", g.function, g.family))
	}
}

func (r *Refresher) ingestTimed(ctx context.Context, g getterSpec, turn int, raw json.RawMessage) error {
	rows, err := decodeRows(raw)
	if err != nil {
		return err
	}

	timedRows := make([]knowledge.TimedRow, 0, len(rows))
	for _, row := range rows {
		payload, err := r.localizePayload(ctx, row.Payload)
		if err != nil {
			return err
		}
		timedRows = append(timedRows, knowledge.TimedRow{
			EntityKey:  row.EntityKey,
			Turn:       turn,
			Payload:    payload,
			Visibility: toVisibility(row.Visibility),
		})
	}

	return r.store.StoreTimed(ctx, g.kind, timedRows)
}

func (r *Refresher) ingestPublic(ctx context.Context, g getterSpec, raw json.RawMessage) error {
	rows, err := decodeRows(raw)
	if err != nil {
		return err
	}

	for _, row := range rows {
		payload, err := r.localizePayload(ctx, row.Payload)
		if err != nil {
			return err
		}
		if err := r.store.StorePublic(ctx, g.kind, row.EntityKey, payload, toVisibility(row.Visibility)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Refresher) ingestEvents(ctx context.Context, turn int, raw json.RawMessage) error {
	var events []wireEvent
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &events); err != nil {
			return voxerr.Wrap(voxerr.Internal, "refresh.decode_events", "failed to decode getter result", err)
		}
	}

	for _, ev := range events {
		payload, err := r.localizePayload(ctx, ev.Payload)
		if err != nil {
			return err
		}

		slot := ev.Slot
		if ev.Dynamic {
			slot += knowledge.NativeEventCeiling
		}
		id := knowledge.EventID(turn, slot)

		if err := r.store.StoreEvent(ctx, id, turn, ev.Type, payload, toVisibility(ev.Visibility)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Refresher) localizePayload(ctx context.Context, payload map[string]any) (map[string]any, error) {
	localized, err := r.localizer.LocalizeRecursive(ctx, payload)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "refresh.localize", "failed to localize getter payload", err)
	}
	out, ok := localized.(map[string]any)
	if !ok {
		return payload, nil
	}
	return out, nil
}

func decodeRows(raw json.RawMessage) ([]wireRow, error) {
	var rows []wireRow
	if len(raw) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "refresh.decode_rows", "failed to decode getter result", err)
	}
	return rows, nil
}

func toVisibility(raw map[int]int) knowledge.Visibility {
	if len(raw) == 0 {
		return nil
	}
	visibility := make(knowledge.Visibility, len(raw))
	for viewer, level := range raw {
		visibility[viewer] = knowledge.Level(level)
	}
	return visibility
}
