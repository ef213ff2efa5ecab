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
)

// InformationalTool carries no game-state access at all: it answers a fixed
// or cheaply computed question about the system itself. SPEC_FULL adds this
// fifth kind for self-describing tools that are neither queries over game
// data nor mutating bridge actions; the only one cmd/vox registers is
// list-tools, and the telepathist subcommand's runtime has no tools.
type InformationalTool struct {
	base

	handler func(ctx context.Context, args json.RawMessage) (any, error)
}

// NewInformationalTool wraps handler as a named, described, read-only tool.
func NewInformationalTool(name, description string, inputSchema map[string]any, handler func(context.Context, json.RawMessage) (any, error)) (*InformationalTool, error) {
	var input *Schema
	if inputSchema != nil {
		var err error
		input, err = FromDocument(inputSchema)
		if err != nil {
			return nil, err
		}
	}

	return &InformationalTool{
		base: base{
			name:        name,
			description: description,
			kind:        KindInformational,
			annotations: Annotations{ReadOnly: true, Idempotent: true, Cacheable: true},
			input:       input,
		},
		handler: handler,
	}, nil
}

func (t *InformationalTool) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	return t.handler(ctx, raw)
}
