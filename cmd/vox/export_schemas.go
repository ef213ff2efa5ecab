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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/config"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/gamedb"
)

// ExportSchemasCmd dumps the rules database's schema - every table's column
// definitions - as JSON, one file per table under --out, generalizing a
// single reflected Go struct's schema dump to every table gamedb.Gateway
// can introspect via PRAGMA table_info.
type ExportSchemasCmd struct {
	Out string `help:"Directory to write one JSON schema file per table into." required:"" type:"path"`
}

func (c *ExportSchemasCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return wrapInit(fmt.Errorf("loading configuration: %w", err))
	}

	gateway, err := gamedb.Open(cfg.RulesDBPath, cfg.LocalizationDBPath, cfg.Language)
	if err != nil {
		return wrapInit(fmt.Errorf("opening rules database: %w", err))
	}
	defer gateway.Close()

	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return wrapInit(fmt.Errorf("creating output directory: %w", err))
	}

	ctx := context.Background()
	tables, err := gateway.Tables(ctx)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}

	for _, table := range tables {
		columns, err := gateway.Schema(ctx, table)
		if err != nil {
			return fmt.Errorf("reading schema for %s: %w", table, err)
		}

		data, err := json.MarshalIndent(map[string]any{
			"table":   table,
			"columns": columns,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding schema for %s: %w", table, err)
		}

		path := filepath.Join(c.Out, table+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	fmt.Printf("exported %d table schemas to %s\n", len(tables), c.Out)
	return nil
}
