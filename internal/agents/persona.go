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
	"context"
	"strconv"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/knowledge"
)

// personaKind is the mutable knowledge kind a player's persona weights live
// under (§4.A2's persona tracker).
const personaKind = "Persona"

// PersonaTracker nudges a player's persona weights turn over turn and
// exposes the current weights for a strategist to read when composing
// rationale. It is plain bookkeeping over knowledge.Store's mutable table,
// not an agentruntime.Agent - no model call is involved.
type PersonaTracker struct {
	store *knowledge.Store
}

// NewPersonaTracker returns a PersonaTracker backed by store.
func NewPersonaTracker(store *knowledge.Store) *PersonaTracker {
	return &PersonaTracker{store: store}
}

// Weights returns player's current persona weights, or an empty map if the
// player has none recorded yet.
func (p *PersonaTracker) Weights(ctx context.Context, player int) (map[string]float64, error) {
	record, err := p.store.GetMutable(ctx, personaKind, player, player)
	if err != nil {
		return nil, err
	}
	return toWeights(record), nil
}

// Nudge applies deltas to player's persona weights and persists the result
// under turn, returning the updated weights.
func (p *PersonaTracker) Nudge(ctx context.Context, player, turn int, deltas map[string]float64) (map[string]float64, error) {
	current, err := p.Weights(ctx, player)
	if err != nil {
		return nil, err
	}

	updated := make(map[string]float64, len(current)+len(deltas))
	for trait, weight := range current {
		updated[trait] = weight
	}
	for trait, delta := range deltas {
		updated[trait] += delta
	}

	payload := make(map[string]any, len(updated))
	for trait, weight := range updated {
		payload[trait] = weight
	}

	if err := p.store.StoreMutable(ctx, personaKind, player, payload, turn, nil, nil); err != nil {
		return nil, err
	}
	return updated, nil
}

func toWeights(record *knowledge.MutableRecord) map[string]float64 {
	weights := make(map[string]float64)
	if record == nil {
		return weights
	}
	for trait, raw := range record.Payload {
		if f, ok := raw.(float64); ok {
			weights[trait] = f
		}
	}
	return weights
}

// relationshipChangesKind is the mutable knowledge kind carrying the
// running relationship-delta tally an envoy watches (SPEC_FULL's observer
// "relationship" action category).
const relationshipChangesKind = "RelationshipChanges"

// PeaceOverture is a candidate relationship action the envoy surfaces for a
// strategist to ratify. The envoy itself never writes to knowledge; only a
// strategist (or keep-status-quo) does, per §4.A2's explicit constraint.
type PeaceOverture struct {
	Player      int
	Counterpart int
	Delta       float64
	Reason      string
}

// EnvoyPeaceCheck flags peace-proposal opportunities when a pairwise
// relationship improvement reaches threshold, without writing anything
// itself.
type EnvoyPeaceCheck struct {
	store     *knowledge.Store
	threshold float64
}

// NewEnvoyPeaceCheck returns an EnvoyPeaceCheck backed by store, flagging
// counterparts whose recorded delta is at least threshold. Negative swings
// are never flagged, however large.
func NewEnvoyPeaceCheck(store *knowledge.Store, threshold float64) *EnvoyPeaceCheck {
	return &EnvoyPeaceCheck{store: store, threshold: threshold}
}

// Check reads player's recorded relationship changes and returns the
// overtures worth a strategist's attention this turn.
func (e *EnvoyPeaceCheck) Check(ctx context.Context, player int) ([]PeaceOverture, error) {
	record, err := e.store.GetMutable(ctx, relationshipChangesKind, player, player)
	if err != nil || record == nil {
		return nil, err
	}

	var overtures []PeaceOverture
	for key, raw := range record.Payload {
		delta, ok := raw.(float64)
		if !ok || delta < e.threshold {
			continue
		}
		counterpart, convErr := asPlayerID(key)
		if convErr != nil {
			continue
		}
		overtures = append(overtures, PeaceOverture{
			Player:      player,
			Counterpart: counterpart,
			Delta:       delta,
			Reason:      "relationship improved enough to warrant a peace overture",
		})
	}
	return overtures, nil
}

// asPlayerID parses a RelationshipChanges payload key (the counterpart
// player ID) back into an int.
func asPlayerID(key string) (int, error) {
	return strconv.Atoi(key)
}
