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

// PublicRecord is a snapshot keyed by entity only (no turn, no player).
type PublicRecord struct {
	Kind       string
	EntityKey  string
	Payload    map[string]any
	Visibility Visibility
}

// StorePublic upserts a public snapshot.
func (s *Store) StorePublic(ctx context.Context, kind, entityKey string, payload map[string]any, visibility Visibility) error {
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_public (kind, entity_key, payload, visibility, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, entity_key) DO UPDATE SET
			payload = excluded.payload,
			visibility = excluded.visibility,
			updated_at = excluded.updated_at`,
		kind, entityKey, raw, visibility.encode(), now())
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.store_public", "failed to upsert public record", err)
	}
	return nil
}

// GetPublic reads one public record, filtered by viewer visibility. A
// nil, nil result means the record does not exist or is hidden from viewer.
func (s *Store) GetPublic(ctx context.Context, kind, entityKey string, viewer int) (*PublicRecord, error) {
	var payload, vis string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, visibility FROM knowledge_public WHERE kind = ? AND entity_key = ?`,
		kind, entityKey).Scan(&payload, &vis)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, voxerr.Wrap(voxerr.Internal, "knowledge.get_public", "failed to read public record", err)
	}

	visibility := decodeVisibility(vis)
	if visibility.For(viewer) == Hidden {
		return nil, nil
	}

	decoded, err := unmarshalPayload(payload)
	if err != nil {
		return nil, err
	}

	return &PublicRecord{Kind: kind, EntityKey: entityKey, Payload: project(decoded, visibility.For(viewer)), Visibility: visibility}, nil
}

// ListPublic reads every public record of kind visible to viewer.
func (s *Store) ListPublic(ctx context.Context, kind string, viewer int) ([]PublicRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_key, payload, visibility FROM knowledge_public WHERE kind = ?`, kind)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "knowledge.list_public", "failed to list public records", err)
	}
	defer rows.Close()

	var result []PublicRecord
	for rows.Next() {
		var entityKey, payload, vis string
		if err := rows.Scan(&entityKey, &payload, &vis); err != nil {
			return nil, voxerr.Wrap(voxerr.Internal, "knowledge.list_public_scan", "failed to scan public record", err)
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
		result = append(result, PublicRecord{Kind: kind, EntityKey: entityKey, Payload: project(decoded, level), Visibility: visibility})
	}
	return result, rows.Err()
}

// project returns the full payload for Level Full, and a basic projection
// (only keys not starting with "_") otherwise. Tools layering richer
// projection policy on top of this (§4.C1) may define their own
// basic-field allowlists; this is the store-level default enforcement.
func project(payload map[string]any, level Level) map[string]any {
	if level >= Full {
		return payload
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if len(k) > 0 && k[0] == '_' {
			continue
		}
		out[k] = v
	}
	return out
}
