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
	"reflect"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// MutableRecord is the latest-value-per-(kind,player) row.
type MutableRecord struct {
	Kind        string
	Player      int
	Payload     map[string]any
	Visibility  Visibility
	UpdatedTurn int
}

// AuditRow is one turn-scoped audit entry produced by a real mutation.
type AuditRow struct {
	Turn    int
	Payload map[string]any
}

// StoreMutable upserts the single (kind, player) row. The candidate payload
// is compared against the current row with ignoredKeys excluded from the
// comparison (resolving the §9 Open Question: the mutable row's turn column
// always advances to reflect the latest write, but a new turn-scoped audit
// row is appended only when the non-ignored fields actually changed).
func (s *Store) StoreMutable(ctx context.Context, kind string, player int, payload map[string]any, turn int, visibility Visibility, ignoredKeys []string) error {
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.store_mutable_begin", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var existingRaw string
	err = tx.QueryRowContext(ctx, `
		SELECT payload FROM knowledge_mutable WHERE kind = ? AND player = ?`, kind, player).Scan(&existingRaw)

	changed := true
	if err == nil {
		existing, decodeErr := unmarshalPayload(existingRaw)
		if decodeErr == nil {
			changed = !equalIgnoring(existing, payload, ignoredKeys)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return voxerr.Wrap(voxerr.Internal, "knowledge.store_mutable_read", "failed to read current mutable row", err)
	}

	ts := now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO knowledge_mutable (kind, player, payload, visibility, updated_turn, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, player) DO UPDATE SET
			payload = excluded.payload,
			visibility = excluded.visibility,
			updated_turn = excluded.updated_turn,
			updated_at = excluded.updated_at`,
		kind, player, raw, visibility.encode(), turn, ts)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.store_mutable_upsert", "failed to upsert mutable record", err)
	}

	if changed {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO knowledge_mutable_audit (kind, player, turn, payload, created_at)
			VALUES (?, ?, ?, ?, ?)`, kind, player, turn, raw, ts)
		if err != nil {
			return voxerr.Wrap(voxerr.Internal, "knowledge.store_mutable_audit", "failed to write audit row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.store_mutable_commit", "failed to commit transaction", err)
	}
	return nil
}

// equalIgnoring reports whether a and b are equal after removing ignoredKeys
// from both sides.
func equalIgnoring(a, b map[string]any, ignoredKeys []string) bool {
	ignored := make(map[string]bool, len(ignoredKeys))
	for _, k := range ignoredKeys {
		ignored[k] = true
	}

	strip := func(m map[string]any) map[string]any {
		out := make(map[string]any, len(m))
		for k, v := range m {
			if !ignored[k] {
				out[k] = v
			}
		}
		return out
	}

	return reflect.DeepEqual(strip(a), strip(b))
}

// GetMutable reads the current (kind, player) row.
func (s *Store) GetMutable(ctx context.Context, kind string, player int, viewer int) (*MutableRecord, error) {
	var payload, vis string
	var updatedTurn int
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, visibility, updated_turn FROM knowledge_mutable WHERE kind = ? AND player = ?`,
		kind, player).Scan(&payload, &vis, &updatedTurn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, voxerr.Wrap(voxerr.Internal, "knowledge.get_mutable", "failed to read mutable record", err)
	}

	visibility := decodeVisibility(vis)
	level := visibility.For(viewer)
	if level == Hidden {
		return nil, nil
	}

	decoded, err := unmarshalPayload(payload)
	if err != nil {
		return nil, err
	}

	return &MutableRecord{
		Kind: kind, Player: player, Payload: project(decoded, level),
		Visibility: visibility, UpdatedTurn: updatedTurn,
	}, nil
}

// GetMutableHistory returns the audit trail for (kind, player) in turn
// order, for reviewing past rationale (SPEC_FULL addition to §4.L2).
// Outside this package's tests nothing calls it.
func (s *Store) GetMutableHistory(ctx context.Context, kind string, player int) ([]AuditRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn, payload FROM knowledge_mutable_audit
		WHERE kind = ? AND player = ? ORDER BY turn ASC`, kind, player)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "knowledge.get_mutable_history", "failed to query audit trail", err)
	}
	defer rows.Close()

	var result []AuditRow
	for rows.Next() {
		var turn int
		var payload string
		if err := rows.Scan(&turn, &payload); err != nil {
			return nil, voxerr.Wrap(voxerr.Internal, "knowledge.get_mutable_history_scan", "failed to scan audit row", err)
		}
		decoded, err := unmarshalPayload(payload)
		if err != nil {
			return nil, err
		}
		result = append(result, AuditRow{Turn: turn, Payload: decoded})
	}
	return result, rows.Err()
}
