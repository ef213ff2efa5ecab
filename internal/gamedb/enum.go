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

package gamedb

import (
	"context"
	"strings"
)

// EnumCatalog maps a rules-table integer ID to its canonical name. -1
// always maps to "None", per §3's Enum catalog invariant.
type EnumCatalog struct {
	Concept string
	ByID    map[int]string
	ByName  map[string]int
}

func newEnumCatalog(concept string) EnumCatalog {
	return EnumCatalog{
		Concept: concept,
		ByID:    map[int]string{-1: "None"},
		ByName:  map[string]int{"None": -1},
	}
}

// Name returns the canonical name for id, or "" if unknown.
func (c EnumCatalog) Name(id int) string { return c.ByID[id] }

// ID returns the ID for a canonical name, or (-1, false) if unknown.
func (c EnumCatalog) ID(name string) (int, bool) {
	id, ok := c.ByName[name]
	if !ok {
		return -1, false
	}
	return id, true
}

// EnumTableSpec names one rules table to scan into an enum catalog.
type EnumTableSpec struct {
	Concept string // e.g. "UnitType", "PolicyID", "ResourceType"
	Table   string // e.g. "Units", "Policies", "Resources"
	// Prefix is prepended to names derived from Type (e.g. "Great " for
	// great-person types), never to a Description column value.
	Prefix string
}

// BuildEnumCatalog scans the named rules tables and returns one EnumCatalog
// per concept. For every row with an ID and either Description or Type, the
// catalog gets (ID -> name): Description is preferred verbatim; otherwise a
// canonical name is derived from Type by stripping the longest prefix up to
// the first underscore and pascal-casing the remainder.
func (g *Gateway) BuildEnumCatalog(ctx context.Context, specs []EnumTableSpec) (map[string]EnumCatalog, error) {
	catalogs := make(map[string]EnumCatalog, len(specs))

	for _, spec := range specs {
		catalog := newEnumCatalog(spec.Concept)

		rows, err := g.Query(ctx, "SELECT * FROM "+quoteIdent(spec.Table))
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			id, ok := intValue(row["ID"])
			if !ok {
				continue
			}

			var name string
			if desc, ok := row["Description"].(string); ok && desc != "" {
				name = desc
			} else if typ, ok := row["Type"].(string); ok && typ != "" {
				name = spec.Prefix + deriveNameFromType(typ)
			} else {
				continue
			}

			catalog.ByID[id] = name
			catalog.ByName[name] = id
		}

		catalogs[spec.Concept] = catalog
	}

	return catalogs, nil
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// deriveNameFromType strips the longest prefix up to the first underscore
// (e.g. "UNIT_GREAT_GENERAL" -> "GREAT_GENERAL") and pascal-cases the
// remainder ("GREAT_GENERAL" -> "Great General").
func deriveNameFromType(typ string) string {
	rest := typ
	if idx := strings.IndexByte(typ, '_'); idx >= 0 {
		rest = typ[idx+1:]
	}
	if rest == "" {
		rest = typ
	}

	parts := strings.Split(rest, "_")
	for i, p := range parts {
		parts[i] = pascalCaseWord(p)
	}
	return strings.Join(parts, " ")
}

func pascalCaseWord(word string) string {
	word = strings.ToLower(word)
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
