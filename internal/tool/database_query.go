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

package tool

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// Record is one entity a DatabaseQueryTool can return: its enum Type (e.g.
// "TECH_AGRICULTURE"), its localized display Name, and the full row data.
type Record struct {
	Type string         `json:"type"`
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

// DatabaseQueryArgs is the input schema for every database-query tool:
// search by name/type substring or fuzzy match, optionally capped.
type DatabaseQueryArgs struct {
	Search     string `json:"search" jsonschema:"description=Name or enum type to search for, empty lists the first maxResults records as summaries"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"description=Maximum number of results to return, default 20"`
}

// Loader fetches every record for one concept (e.g. all techs, all units)
// from the rules database. It is called at most once per process lifetime;
// DatabaseQueryTool caches the result (§4.C1's "static after startup").
type Loader func(ctx context.Context) ([]Record, error)

const defaultMaxResults = 20

// DatabaseQueryTool exposes one rules-database concept (techs, units,
// buildings, policies, ...) as a searchable tool. Grounded on
// pkg/databases's read-side query helpers generalized from a fixed set of
// SQL statements into one schema-agnostic search/lookup tool per concept.
type DatabaseQueryTool struct {
	base

	load Loader

	mu     sync.Mutex
	cached []Record
	err    error
}

// NewDatabaseQueryTool builds a tool named name over the records load
// produces, described by description.
func NewDatabaseQueryTool(name, description string, load Loader) (*DatabaseQueryTool, error) {
	input, err := FromStruct(DatabaseQueryArgs{})
	if err != nil {
		return nil, err
	}

	return &DatabaseQueryTool{
		base: base{
			name:        name,
			description: description,
			kind:        KindDatabaseQuery,
			annotations: Annotations{ReadOnly: true, Idempotent: true, Cacheable: true},
			input:       input,
		},
		load: load,
	}, nil
}

func (t *DatabaseQueryTool) records(ctx context.Context) ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cached != nil || t.err != nil {
		return t.cached, t.err
	}

	records, err := t.load(ctx)
	if err != nil {
		t.err = voxerr.Wrap(voxerr.DependencyFailed, "tool.database_load_failed", "failed to load records for "+t.name, err)
		return nil, t.err
	}
	if records == nil {
		records = []Record{}
	}
	t.cached = records
	return records, nil
}

// Execute runs the tiered search described in search.go. An empty Search
// returns the first MaxResults records in catalog order as summaries (Type
// and Name only); a non-empty Search ranks by match tier and keeps at most
// MaxResults matches. When exactly one record matches, the full record
// (with Data) is returned; otherwise the matches are returned as
// {type, name} summaries, best tier first, for the caller to disambiguate.
func (t *DatabaseQueryTool) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	var args DatabaseQueryArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, voxerr.Wrap(voxerr.InvalidArgument, "tool.invalid_json", "arguments are not valid JSON", err)
		}
	}
	limit := args.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}

	records, err := t.records(ctx)
	if err != nil {
		return nil, err
	}

	if args.Search == "" {
		n := limit
		if n > len(records) {
			n = len(records)
		}
		out := make([]Record, n)
		for i := range out {
			out[i] = Record{Type: records[i].Type, Name: records[i].Name}
		}
		return out, nil
	}

	candidates := make([]candidate, len(records))
	for i, r := range records {
		candidates[i] = candidate{Type: r.Type, Name: r.Name}
	}

	matches := search(args.Search, candidates, limit)
	if len(matches) == 0 {
		return []Record{}, nil
	}

	if len(matches) == 1 {
		return records[matches[0]], nil
	}

	// More than one candidate at the relevant tier(s): return summaries so
	// the caller can narrow the search rather than guess among them.
	out := make([]Record, len(matches))
	for i, idx := range matches {
		out[i] = Record{Type: records[idx].Type, Name: records[idx].Name}
	}
	return out, nil
}
