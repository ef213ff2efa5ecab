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

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// GetSummary returns the cached summary for hash, and false if absent. The
// summarizer agent (§4.A2) hashes (instruction, text) with SHA-256 so that
// asking for the same briefing twice in a turn is free.
func (s *Store) GetSummary(ctx context.Context, hash string) (string, bool, error) {
	var summary string
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM agent_summary_cache WHERE hash = ?`, hash).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, voxerr.Wrap(voxerr.Internal, "knowledge.get_summary", "failed to read cached summary", err)
	}
	return summary, true, nil
}

// PutSummary stores summary under hash, overwriting any prior entry (a
// cache is keyed purely by content, so a collision is a genuine re-ask).
func (s *Store) PutSummary(ctx context.Context, hash, summary string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_summary_cache (hash, summary, created_at) VALUES (?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET summary = excluded.summary, created_at = excluded.created_at`,
		hash, summary, now())
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.put_summary", "failed to write cached summary", err)
	}
	return nil
}
