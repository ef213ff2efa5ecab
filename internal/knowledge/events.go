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

package knowledge

import (
	"context"
	"database/sql"
	"errors"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// EventRecord is one row in the append-only game event log.
type EventRecord struct {
	ID         int64
	Turn       int
	Type       string
	Payload    map[string]any
	Visibility Visibility
}

// EventsPerTurn is the globally monotonic per-turn ID space divisor: id //
// EventsPerTurn always equals the event's turn, per §3's invariant.
const EventsPerTurn = 1_000_000

// NativeEventCeiling is the exclusive upper bound of the low (native)
// half of a turn's per-turn ID slot range; dynamic (derived) events use
// slots at or above it, keeping the two ranges disjoint per §3.
const NativeEventCeiling = EventsPerTurn / 2

// EventID computes a globally monotonic id for (turn, slot).
func EventID(turn, slot int) int64 {
	return int64(turn)*EventsPerTurn + int64(slot)
}

// StoreEvent appends one event. StoreEvent is idempotent on id: a duplicate
// id is rejected without error (matching "duplicate ids are rejected" in
// §4.L2, read as "the write has no effect", not "the call fails" — id
// uniqueness is what the caller cares about and is preserved either way).
func (s *Store) StoreEvent(ctx context.Context, id int64, turn int, eventType string, payload map[string]any, visibility Visibility) error {
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_events (id, turn, type, payload, visibility, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, turn, eventType, raw, visibility.encode(), now())
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.store_event", "failed to append event", err)
	}
	return nil
}

// EventFilter narrows QueryEvents.
type EventFilter struct {
	TurnRange TurnRange
	Types     []string
	SinceID   int64
	Viewer    int
}

// QueryEvents returns events matching filter in id order, enforcing
// visibility for filter.Viewer.
func (s *Store) QueryEvents(ctx context.Context, filter EventFilter) ([]EventRecord, error) {
	query := `SELECT id, turn, type, payload, visibility FROM knowledge_events WHERE 1=1`
	var args []any

	if filter.TurnRange.From > 0 {
		query += ` AND turn >= ?`
		args = append(args, filter.TurnRange.From)
	}
	if filter.TurnRange.To > 0 {
		query += ` AND turn <= ?`
		args = append(args, filter.TurnRange.To)
	}
	if filter.SinceID > 0 {
		query += ` AND id > ?`
		args = append(args, filter.SinceID)
	}
	if len(filter.Types) > 0 {
		query += ` AND type IN (` + placeholders(len(filter.Types)) + `)`
		for _, t := range filter.Types {
			args = append(args, t)
		}
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "knowledge.query_events", "failed to query events", err)
	}
	defer rows.Close()

	var result []EventRecord
	for rows.Next() {
		var id int64
		var turn int
		var eventType, payload, vis string
		if err := rows.Scan(&id, &turn, &eventType, &payload, &vis); err != nil {
			return nil, voxerr.Wrap(voxerr.Internal, "knowledge.query_events_scan", "failed to scan event", err)
		}
		visibility := decodeVisibility(vis)
		level := visibility.For(filter.Viewer)
		if level == Hidden {
			continue
		}
		decoded, err := unmarshalPayload(payload)
		if err != nil {
			return nil, err
		}
		result = append(result, EventRecord{
			ID: id, Turn: turn, Type: eventType,
			Payload: project(decoded, level), Visibility: visibility,
		})
	}
	return result, rows.Err()
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

// MaxEventID returns the highest event id stored, or 0 if none, used to
// pick the next dynamic-event slot.
func (s *Store) MaxEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM knowledge_events`).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, voxerr.Wrap(voxerr.Internal, "knowledge.max_event_id", "failed to read max event id", err)
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}
