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

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/knowledge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// KnowledgeReadArgs is the uniform input shape for knowledge-read tools: an
// optional entity/player filter, an optional turn window, and the viewer
// whose visibility mask applies (§4.C1, §3's per-viewer projection).
type KnowledgeReadArgs struct {
	EntityKey string `json:"entityKey,omitempty" jsonschema:"description=Entity key to read (public/timed families) or leave empty to list all"`
	Player    int    `json:"player,omitempty" jsonschema:"description=Player ID to read (mutable family)"`
	FromTurn  int    `json:"fromTurn,omitempty"`
	ToTurn    int    `json:"toTurn,omitempty"`
	Viewer    int    `json:"viewer" jsonschema:"description=Player ID whose visibility mask is applied to the result"`
}

// KnowledgeReadTool exposes one derived-knowledge kind (a "kind" string in
// one of the store's four table families) as a read-only tool. Grounded on
// pkg/a2a/client/http.go's pattern of a thin typed wrapper per remote
// concern, here wrapping the knowledge.Store query methods instead of an
// HTTP client.
type KnowledgeReadTool struct {
	base

	store *knowledge.Store
	kind  string
	query func(ctx context.Context, store *knowledge.Store, kind string, args KnowledgeReadArgs) (any, error)
}

func newKnowledgeReadTool(name, description, kind string, store *knowledge.Store,
	query func(context.Context, *knowledge.Store, string, KnowledgeReadArgs) (any, error)) (*KnowledgeReadTool, error) {
	input, err := FromStruct(KnowledgeReadArgs{})
	if err != nil {
		return nil, err
	}
	return &KnowledgeReadTool{
		base: base{
			name:        name,
			description: description,
			kind:        KindKnowledgeRead,
			annotations: Annotations{ReadOnly: true, Idempotent: true},
			input:       input,
		},
		store: store,
		kind:  kind,
		query: query,
	}, nil
}

// NewPublicReadTool reads from the public table family, listing every
// record of kind when EntityKey is empty, or one record otherwise.
func NewPublicReadTool(name, description, kind string, store *knowledge.Store) (*KnowledgeReadTool, error) {
	return newKnowledgeReadTool(name, description, kind, store,
		func(ctx context.Context, s *knowledge.Store, kind string, args KnowledgeReadArgs) (any, error) {
			if args.EntityKey != "" {
				rec, err := s.GetPublic(ctx, kind, args.EntityKey, args.Viewer)
				if err != nil {
					return nil, voxerr.Wrap(voxerr.DependencyFailed, "tool.knowledge_read_failed", "failed to read public knowledge", err)
				}
				return rec, nil
			}
			recs, err := s.ListPublic(ctx, kind, args.Viewer)
			if err != nil {
				return nil, voxerr.Wrap(voxerr.DependencyFailed, "tool.knowledge_read_failed", "failed to list public knowledge", err)
			}
			return recs, nil
		})
}

// NewTimedReadTool reads from the timed table family within [FromTurn, ToTurn].
func NewTimedReadTool(name, description, kind string, store *knowledge.Store) (*KnowledgeReadTool, error) {
	return newKnowledgeReadTool(name, description, kind, store,
		func(ctx context.Context, s *knowledge.Store, kind string, args KnowledgeReadArgs) (any, error) {
			recs, err := s.GetTimed(ctx, kind, knowledge.TurnRange{From: args.FromTurn, To: args.ToTurn}, args.EntityKey, args.Viewer)
			if err != nil {
				return nil, voxerr.Wrap(voxerr.DependencyFailed, "tool.knowledge_read_failed", "failed to read timed knowledge", err)
			}
			return recs, nil
		})
}

// NewMutableReadTool reads the latest row from the mutable table family for
// a given player.
func NewMutableReadTool(name, description, kind string, store *knowledge.Store) (*KnowledgeReadTool, error) {
	return newKnowledgeReadTool(name, description, kind, store,
		func(ctx context.Context, s *knowledge.Store, kind string, args KnowledgeReadArgs) (any, error) {
			rec, err := s.GetMutable(ctx, kind, args.Player, args.Viewer)
			if err != nil {
				return nil, voxerr.Wrap(voxerr.DependencyFailed, "tool.knowledge_read_failed", "failed to read mutable knowledge", err)
			}
			return rec, nil
		})
}

// NewEventsReadTool reads from the append-only events table within
// [FromTurn, ToTurn], restricted to types. It takes no since-event-id
// argument; EventFilter.SinceID is left unset.
func NewEventsReadTool(name, description string, store *knowledge.Store, types []string) (*KnowledgeReadTool, error) {
	return newKnowledgeReadTool(name, description, "", store,
		func(ctx context.Context, s *knowledge.Store, _ string, args KnowledgeReadArgs) (any, error) {
			recs, err := s.QueryEvents(ctx, knowledge.EventFilter{
				TurnRange: knowledge.TurnRange{From: args.FromTurn, To: args.ToTurn},
				Types:     types,
				Viewer:    args.Viewer,
			})
			if err != nil {
				return nil, voxerr.Wrap(voxerr.DependencyFailed, "tool.knowledge_read_failed", "failed to query events", err)
			}
			return recs, nil
		})
}

func (t *KnowledgeReadTool) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	var args KnowledgeReadArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, voxerr.Wrap(voxerr.InvalidArgument, "tool.invalid_json", "arguments are not valid JSON", err)
		}
	}
	return t.query(ctx, t.store, t.kind, args)
}
