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

// Package telepathist manages the derived `<context-id>.telepathist.db`
// sibling of a session's telemetry database: turn and phase summaries built
// offline from that session's recorded spans, plus a key/value summary
// cache (GetCache/PutCache). Nothing outside this package's tests reads or
// writes that cache, and no agent reads this database during the live turn
// loop.
//
// The schema-as-a-constant, CREATE-TABLE-IF-NOT-EXISTS-on-open idiom is
// grounded on internal/telemetry/spans.go's SQLiteSpanExporter; the
// hash-keyed cache table is grounded on internal/knowledge's summary_cache.go.
package telepathist

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS turn_summaries (
	turn           INTEGER PRIMARY KEY,
	short_summary  TEXT NOT NULL,
	full_summary   TEXT NOT NULL,
	model          TEXT NOT NULL,
	created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS phase_summaries (
	from_turn  INTEGER NOT NULL,
	to_turn    INTEGER NOT NULL,
	summary    TEXT NOT NULL,
	model      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (from_turn, to_turn)
);

CREATE TABLE IF NOT EXISTS summary_cache (
	cache_key  TEXT PRIMARY KEY,
	result     TEXT NOT NULL,
	model      TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Store is the derived telepathist database for one session. It never
// writes to the session's own telemetry database; Generator reads that one
// read-only and writes only here.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the telepathist database at path,
// deriving the schema on first use.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "telepathist.mkdir", "failed to create telepathist db directory", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL")
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "telepathist.open", "failed to open telepathist db", err)
	}
	if _, err := db.Exec(createSchemaSQL); err != nil {
		db.Close()
		return nil, voxerr.Wrap(voxerr.Internal, "telepathist.schema", "failed to create telepathist schema", err)
	}
	return &Store{db: db}, nil
}

// DBPath derives the sibling telepathist database path for a session
// telemetry database at telemetryDBPath, e.g. "session-1.db" ->
// "session-1.telepathist.db".
func DBPath(telemetryDBPath string) string {
	ext := filepath.Ext(telemetryDBPath)
	return telemetryDBPath[:len(telemetryDBPath)-len(ext)] + ".telepathist" + ext
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// TurnSummary is one turn's cached short/full summary.
type TurnSummary struct {
	Turn          int
	ShortSummary  string
	FullSummary   string
	Model         string
	CreatedAtUnix int64
}

// GetTurnSummary returns the cached summary for turn, if one exists.
func (s *Store) GetTurnSummary(ctx context.Context, turn int) (*TurnSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT turn, short_summary, full_summary, model, created_at FROM turn_summaries WHERE turn = ?`, turn)
	var t TurnSummary
	if err := row.Scan(&t.Turn, &t.ShortSummary, &t.FullSummary, &t.Model, &t.CreatedAtUnix); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, voxerr.Wrap(voxerr.Internal, "telepathist.get_turn_summary", "failed to read turn summary", err)
	}
	return &t, nil
}

// PutTurnSummary persists turn's derived summary, replacing any prior entry.
func (s *Store) PutTurnSummary(ctx context.Context, t TurnSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO turn_summaries (turn, short_summary, full_summary, model, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.Turn, t.ShortSummary, t.FullSummary, t.Model, t.CreatedAtUnix)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "telepathist.put_turn_summary", "failed to persist turn summary", err)
	}
	return nil
}

// PhaseSummary is the cached narrative covering a contiguous turn range.
type PhaseSummary struct {
	FromTurn      int
	ToTurn        int
	Summary       string
	Model         string
	CreatedAtUnix int64
}

// GetPhaseSummary returns the cached phase summary for [fromTurn, toTurn],
// if one exists.
func (s *Store) GetPhaseSummary(ctx context.Context, fromTurn, toTurn int) (*PhaseSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT from_turn, to_turn, summary, model, created_at FROM phase_summaries WHERE from_turn = ? AND to_turn = ?`,
		fromTurn, toTurn)
	var p PhaseSummary
	if err := row.Scan(&p.FromTurn, &p.ToTurn, &p.Summary, &p.Model, &p.CreatedAtUnix); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, voxerr.Wrap(voxerr.Internal, "telepathist.get_phase_summary", "failed to read phase summary", err)
	}
	return &p, nil
}

// PutPhaseSummary persists the phase summary for [fromTurn, toTurn],
// replacing any prior entry.
func (s *Store) PutPhaseSummary(ctx context.Context, p PhaseSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO phase_summaries (from_turn, to_turn, summary, model, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.FromTurn, p.ToTurn, p.Summary, p.Model, p.CreatedAtUnix)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "telepathist.put_phase_summary", "failed to persist phase summary", err)
	}
	return nil
}

// GetCache returns the cached result for key, if one exists.
func (s *Store) GetCache(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT result FROM summary_cache WHERE cache_key = ?`, key)
	var result string
	if err := row.Scan(&result); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, voxerr.Wrap(voxerr.Internal, "telepathist.get_cache", "failed to read summary cache", err)
	}
	return result, true, nil
}

// PutCache persists result under key, tagged with the model that produced
// it and createdAtUnix (the caller's clock - this package never calls
// time.Now itself, see Generator).
func (s *Store) PutCache(ctx context.Context, key, result, model string, createdAtUnix int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO summary_cache (cache_key, result, model, created_at) VALUES (?, ?, ?, ?)`,
		key, result, model, createdAtUnix)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "telepathist.put_cache", "failed to persist summary cache entry", err)
	}
	return nil
}
