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

// Package gamedb implements the L1 database gateway: read-only access to
// the game's rules and localization SQLite databases, localization
// substitution, and enum-catalog construction.
package gamedb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// Gateway opens the two read-only game databases and serves typed queries,
// localization, and enum-catalog construction on top of them.
//
// database/sql + the sqlite3 driver is the same combination the teacher
// uses for its task store (pkg/agent/task_service_sql.go); here both
// connections are opened read-only (mode=ro + query_only pragma) since the
// core must never mutate either file.
type Gateway struct {
	rules *sql.DB
	loc   *sql.DB

	language string

	mu       sync.RWMutex
	locCache map[string]string
}

// Open opens the rules database at rulesPath and the localization database
// at locPath, both read-only. A missing file is a fatal initialization
// error per §4.L1's failure semantics; callers should treat a non-nil error
// here as fatal (exit code 1).
func Open(rulesPath, locPath, language string) (*Gateway, error) {
	rules, err := openReadOnly(rulesPath)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "gamedb.open_rules", "failed to open rules database", err)
	}

	loc, err := openReadOnly(locPath)
	if err != nil {
		rules.Close()
		return nil, voxerr.Wrap(voxerr.Internal, "gamedb.open_localization", "failed to open localization database", err)
	}

	if language == "" {
		language = "en_US"
	}

	return &Gateway{
		rules:    rules,
		loc:      loc,
		language: language,
		locCache: make(map[string]string),
	}, nil
}

func openReadOnly(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_query_only=1&immutable=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close releases both database connections.
func (g *Gateway) Close() error {
	err1 := g.rules.Close()
	err2 := g.loc.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Row is one result row from Query, column name to value.
type Row map[string]any

// Query runs sql against the rules database with positional bindings and
// returns every row as a column-name-keyed map. Errors are logged by the
// caller and surfaced as a dependency-failed voxerr.
func (g *Gateway) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := g.rules.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.DependencyFailed, "gamedb.query_failed", "rules query failed", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "gamedb.columns_failed", "failed to read result columns", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, voxerr.Wrap(voxerr.Internal, "gamedb.scan_failed", "failed to scan result row", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeSQLiteValue(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, voxerr.Wrap(voxerr.DependencyFailed, "gamedb.rows_error", "error iterating rules query result", err)
	}
	return result, nil
}

// normalizeSQLiteValue converts the driver's []byte representation of TEXT
// columns into a plain string so downstream JSON encoding behaves.
func normalizeSQLiteValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// ColumnDef describes one column of a rules-database table, used by the
// export-schemas CLI subcommand.
type ColumnDef struct {
	Name     string
	Type     string
	NotNull  bool
	PK       bool
}

// Schema returns the column definitions for table, read from sqlite's
// table_info pragma.
func (g *Gateway) Schema(ctx context.Context, table string) ([]ColumnDef, error) {
	rows, err := g.rules.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, voxerr.Wrap(voxerr.DependencyFailed, "gamedb.schema_failed", "failed to read table schema", err)
	}
	defer rows.Close()

	var cols []ColumnDef
	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, voxerr.Wrap(voxerr.Internal, "gamedb.schema_scan_failed", "failed to scan schema row", err)
		}
		cols = append(cols, ColumnDef{Name: name, Type: ctype, NotNull: notNull != 0, PK: pk != 0})
	}
	return cols, rows.Err()
}

// Tables lists every table name in the rules database, used by export-schemas.
func (g *Gateway) Tables(ctx context.Context) ([]string, error) {
	rows, err := g.rules.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' ORDER BY name`)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.DependencyFailed, "gamedb.tables_failed", "failed to list rules tables", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
