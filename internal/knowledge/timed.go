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

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// TimedRow is one row to batch-insert via StoreTimed.
type TimedRow struct {
	EntityKey  string
	Turn       int
	Payload    map[string]any
	Visibility Visibility
}

// TimedRecord is one row returned by GetTimed.
type TimedRecord struct {
	Kind       string
	EntityKey  string
	Turn       int
	Payload    map[string]any
	Visibility Visibility
}

// TurnRange bounds a GetTimed query; Turn fields of 0 mean unbounded.
type TurnRange struct {
	From, To int
}

// StoreTimed batch-inserts rows keyed by (entity, turn). Within one call,
// duplicate (entity, turn) pairs are not replaced — the first write for a
// given key in the batch wins, matching "no duplicate replacement within
// the turn" from §4.L2.
func (s *Store) StoreTimed(ctx context.Context, kind string, rows []TimedRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.store_timed_begin", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO knowledge_timed (kind, entity_key, turn, payload, visibility, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, entity_key, turn) DO NOTHING`)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.store_timed_prepare", "failed to prepare insert", err)
	}
	defer stmt.Close()

	ts := now()
	for _, row := range rows {
		raw, err := marshalPayload(row.Payload)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, kind, row.EntityKey, row.Turn, raw, row.Visibility.encode(), ts); err != nil {
			return voxerr.Wrap(voxerr.Internal, "knowledge.store_timed_exec", "failed to insert timed row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.store_timed_commit", "failed to commit transaction", err)
	}
	return nil
}

// GetTimed returns timed records of kind within turnRange, optionally
// restricted to a single entity (entityFilter, "" for no filter), visible
// to viewer.
func (s *Store) GetTimed(ctx context.Context, kind string, turnRange TurnRange, entityFilter string, viewer int) ([]TimedRecord, error) {
	query := `SELECT entity_key, turn, payload, visibility FROM knowledge_timed WHERE kind = ?`
	args := []any{kind}

	if turnRange.From > 0 {
		query += ` AND turn >= ?`
		args = append(args, turnRange.From)
	}
	if turnRange.To > 0 {
		query += ` AND turn <= ?`
		args = append(args, turnRange.To)
	}
	if entityFilter != "" {
		query += ` AND entity_key = ?`
		args = append(args, entityFilter)
	}
	query += ` ORDER BY turn ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "knowledge.get_timed", "failed to query timed records", err)
	}
	defer rows.Close()

	var result []TimedRecord
	for rows.Next() {
		var entityKey, payload, vis string
		var turn int
		if err := rows.Scan(&entityKey, &turn, &payload, &vis); err != nil {
			return nil, voxerr.Wrap(voxerr.Internal, "knowledge.get_timed_scan", "failed to scan timed record", err)
		}
		visibility := decodeVisibility(vis)
		level := visibility.For(viewer)
		if level == Hidden {
			continue
		}
		decoded, err := unmarshalPayload(payload)
		if err != nil {
			return nil, err
		}
		result = append(result, TimedRecord{
			Kind: kind, EntityKey: entityKey, Turn: turn,
			Payload: project(decoded, level), Visibility: visibility,
		})
	}
	return result, rows.Err()
}
