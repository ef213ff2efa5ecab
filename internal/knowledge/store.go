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

// Package knowledge implements the L2 derived knowledge store: the four
// table families (public, timed, mutable, events) plus static metadata,
// all backed by a single SQLite file separate from the read-only game
// databases.
//
// Schema lives under ./migrations and is applied with golang-migrate,
// following the pattern codeready-toolchain/tarsy uses for its own
// evolving schema — the teacher's own task store
// (pkg/agent/task_service_sql.go) instead inlines a single
// CREATE TABLE IF NOT EXISTS, which does not scale to four evolving table
// families plus future additions.
package knowledge

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is the process-wide knowledge store singleton.
//
// §5 requires a single-writer discipline per connection: writes go through
// writeMu so that two storeMutable calls to the same (kind, player) are
// linearised, matching the ordering guarantee in §5.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open opens (creating if absent) the knowledge SQLite file at path and
// applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL")
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "knowledge.open", "failed to open knowledge database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, voxerr.Wrap(voxerr.Internal, "knowledge.ping", "failed to connect to knowledge database", err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline per §5

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.migrations_source", "failed to load embedded migrations", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.migrations_driver", "failed to create migration driver", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.migrations_init", "failed to initialize migrator", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return voxerr.Wrap(voxerr.Internal, "knowledge.migrations_apply", "failed to apply migrations", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func marshalPayload(payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", voxerr.Wrap(voxerr.InvalidArgument, "knowledge.marshal", "failed to marshal payload", err)
	}
	return string(b), nil
}

func unmarshalPayload(raw string) (map[string]any, error) {
	var v map[string]any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "knowledge.unmarshal", "failed to unmarshal stored payload", err)
	}
	return v, nil
}

func now() time.Time { return time.Now().UTC() }

// SetMetadata upserts a static game-setting KV pair.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "knowledge.set_metadata", "failed to write metadata", err)
	}
	return nil
}

// GetMetadata reads a static game-setting KV pair, returning ("", false) if absent.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM knowledge_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, voxerr.Wrap(voxerr.Internal, "knowledge.get_metadata", "failed to read metadata", err)
	}
	return value, true, nil
}
