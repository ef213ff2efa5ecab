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

// Package tool implements the C1 tool catalog: a uniform surface over five
// kinds of capability (database query, knowledge read, bridge action, agent
// callable, informational) that both the RPC server and the agent runtime
// dispatch through identically.
//
// The catalog favors "one interface, many backends" over a class hierarchy
// per backend, expressed here as a closed tagged sum (Kind + one struct per
// kind) instead of an open interface, since the RPC layer needs a fixed,
// enumerable set of tool shapes it can introspect.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// Kind identifies which of the five tool shapes a Tool implements.
type Kind string

const (
	KindDatabaseQuery Kind = "database-query"
	KindKnowledgeRead Kind = "knowledge-read"
	KindBridgeAction  Kind = "bridge-action"
	KindAgentCallable Kind = "agent-callable"
	KindInformational Kind = "informational"
)

// Annotations describe side-effect and caching hints a caller (the RPC
// server, an agent's planner) can use without invoking the tool, mirroring
// the read-only/idempotent hints an MCP toolset passes through from its
// upstream tool definitions.
type Annotations struct {
	ReadOnly   bool `json:"readOnly"`
	Idempotent bool `json:"idempotent"`
	Cacheable  bool `json:"cacheable"`
}

// Tool is the uniform surface every catalog entry implements regardless of
// kind. Execute receives raw JSON arguments (already schema-validated by
// Catalog.Call or the agent runtime) and returns a JSON-marshalable result.
type Tool interface {
	Name() string
	Description() string
	Kind() Kind
	Annotations() Annotations
	InputSchema() *Schema
	OutputSchema() *Schema
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// base holds the fields common to every concrete tool kind; each kind embeds
// it and supplies its own Execute.
type base struct {
	name        string
	description string
	kind        Kind
	annotations Annotations
	input       *Schema
	output      *Schema
}

func (b *base) Name() string             { return b.name }
func (b *base) Description() string      { return b.description }
func (b *base) Kind() Kind               { return b.kind }
func (b *base) Annotations() Annotations { return b.annotations }
func (b *base) InputSchema() *Schema     { return b.input }
func (b *base) OutputSchema() *Schema    { return b.output }

// Summary is the lightweight projection of a Tool returned by list_tools,
// cached for the process lifetime per §4.C1 ("tool list is static after
// startup; summaries are computed once").
type Summary struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Kind        Kind        `json:"kind"`
	Annotations Annotations `json:"annotations"`
	InputSchema any         `json:"inputSchema"`
}

func summarize(t Tool) Summary {
	var doc any
	if s := t.InputSchema(); s != nil {
		doc = s.Document
	}
	return Summary{
		Name:        t.Name(),
		Description: t.Description(),
		Kind:        t.Kind(),
		Annotations: t.Annotations(),
		InputSchema: doc,
	}
}

// validateArgs parses and validates raw against the tool's input schema, or
// passes raw through as a generic decode if the tool declares no schema.
func validateArgs(t Tool, raw json.RawMessage) (any, error) {
	if s := t.InputSchema(); s != nil {
		return s.Validate(raw)
	}
	var instance any
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, voxerr.Wrap(voxerr.InvalidArgument, "tool.invalid_json", "arguments are not valid JSON", err)
	}
	return instance, nil
}

func notFoundf(name, format string, args ...any) error {
	return voxerr.New(voxerr.NotFound, "tool."+name+"_not_found", fmt.Sprintf(format, args...))
}
