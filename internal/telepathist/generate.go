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

package telepathist

import (
	"context"
	"database/sql"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agentruntime"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// spanRow mirrors the columns internal/telemetry/spans.go writes; Generator
// reads a session's telemetry database read-only and never writes to it.
type spanRow struct {
	Turn       int    `json:"turn"`
	Name       string `json:"name"`
	DurationMs float64 `json:"durationMs"`
	StatusCode string `json:"statusCode"`
}

// Generator drives the offline setup pass: read a session's recorded spans,
// call the telepathist agent to narrate them, and persist the result into a
// Store. Clock is injected (rather than calling time.Now itself) so callers
// control exactly what "created_at" records.
type Generator struct {
	telemetryDB *sql.DB
	store       *Store
	runtime     *agentruntime.Runtime
	agentName   string
	clock       func() int64
}

// NewGenerator returns a Generator reading spans from the telemetry
// database at telemetryDBPath, persisting derived summaries into store,
// and calling the named telepathist agent (agentruntime.Agent, usually
// agents.NewTelepathist's registration name) through runtime. clock
// supplies the Unix timestamp stamped on every row written.
func NewGenerator(telemetryDBPath string, store *Store, runtime *agentruntime.Runtime, agentName string, clock func() int64) (*Generator, error) {
	db, err := sql.Open("sqlite3", "file:"+telemetryDBPath+"?mode=ro")
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "telepathist.open_telemetry_db", "failed to open telemetry database for reading", err)
	}
	return &Generator{telemetryDB: db, store: store, runtime: runtime, agentName: agentName, clock: clock}, nil
}

// Close closes the read-only telemetry database handle; it never touches
// the Store, which the caller owns.
func (g *Generator) Close() error {
	return g.telemetryDB.Close()
}

// Turns returns the distinct turn numbers recorded in the telemetry
// database, ascending.
func (g *Generator) Turns(ctx context.Context) ([]int, error) {
	rows, err := g.telemetryDB.QueryContext(ctx, `SELECT DISTINCT turn FROM spans WHERE turn IS NOT NULL AND turn != 0 ORDER BY turn`)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "telepathist.list_turns", "failed to list turns", err)
	}
	defer rows.Close()

	var turns []int
	for rows.Next() {
		var t int
		if err := rows.Scan(&t); err != nil {
			return nil, voxerr.Wrap(voxerr.Internal, "telepathist.scan_turn", "failed to scan turn", err)
		}
		turns = append(turns, t)
	}
	sort.Ints(turns)
	return turns, nil
}

func (g *Generator) spansForTurn(ctx context.Context, turn int) ([]spanRow, error) {
	rows, err := g.telemetryDB.QueryContext(ctx, `SELECT turn, name, duration_ms, status_code FROM spans WHERE turn = ? ORDER BY start_time`, turn)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "telepathist.query_spans", "failed to query spans for turn", err)
	}
	defer rows.Close()

	var spans []spanRow
	for rows.Next() {
		var s spanRow
		if err := rows.Scan(&s.Turn, &s.Name, &s.DurationMs, &s.StatusCode); err != nil {
			return nil, voxerr.Wrap(voxerr.Internal, "telepathist.scan_span", "failed to scan span row", err)
		}
		spans = append(spans, s)
	}
	return spans, nil
}

// GenerateTurnSummary builds (or returns the cached) summary for turn,
// calling the telepathist agent on cache miss.
func (g *Generator) GenerateTurnSummary(ctx context.Context, turn int) (*TurnSummary, error) {
	if cached, err := g.store.GetTurnSummary(ctx, turn); err != nil {
		return nil, err
	} else if cached != nil {
		return cached, nil
	}

	spans, err := g.spansForTurn(ctx, turn)
	if err != nil {
		return nil, err
	}

	anySpans := make([]any, len(spans))
	for i, s := range spans {
		anySpans[i] = s
	}

	prior, err := g.store.GetTurnSummary(ctx, turn-1)
	if err != nil {
		return nil, err
	}
	input := map[string]any{"spans": anySpans}
	if prior != nil {
		input["priorSummary"] = prior.ShortSummary
	}

	result, err := g.runtime.CallAgent(ctx, g.agentName, input, map[string]any{}, nil)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.DependencyFailed, "telepathist.generate_turn_summary", "telepathist agent call failed", err)
	}

	short, _ := result.Structured["shortSummary"].(string)
	full, _ := result.Structured["fullSummary"].(string)
	summary := TurnSummary{
		Turn:          turn,
		ShortSummary:  short,
		FullSummary:   full,
		Model:         g.agentName,
		CreatedAtUnix: g.clock(),
	}
	if err := g.store.PutTurnSummary(ctx, summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GeneratePhaseSummary builds (or returns the cached) narrative covering
// [fromTurn, toTurn], stitched from the per-turn short summaries already
// cached in that range.
func (g *Generator) GeneratePhaseSummary(ctx context.Context, fromTurn, toTurn int) (*PhaseSummary, error) {
	if cached, err := g.store.GetPhaseSummary(ctx, fromTurn, toTurn); err != nil {
		return nil, err
	} else if cached != nil {
		return cached, nil
	}

	var spans []any
	for turn := fromTurn; turn <= toTurn; turn++ {
		ts, err := g.store.GetTurnSummary(ctx, turn)
		if err != nil {
			return nil, err
		}
		if ts != nil {
			spans = append(spans, map[string]any{"turn": turn, "summary": ts.ShortSummary})
		}
	}

	result, err := g.runtime.CallAgent(ctx, g.agentName, map[string]any{"spans": spans}, map[string]any{}, nil)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.DependencyFailed, "telepathist.generate_phase_summary", "telepathist agent call failed", err)
	}

	full, _ := result.Structured["fullSummary"].(string)
	summary := PhaseSummary{
		FromTurn:      fromTurn,
		ToTurn:        toTurn,
		Summary:       full,
		Model:         g.agentName,
		CreatedAtUnix: g.clock(),
	}
	if err := g.store.PutPhaseSummary(ctx, summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
