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

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/remotefunc"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// BridgeActionTool invokes one remote function through the L4 registry and
// lets its caller post-process the raw bridge result (e.g. to append a
// knowledge event or emit an observer record), matching the "bridge-action"
// kind §4.C1 names for tools that mutate game state rather than read it.
type BridgeActionTool struct {
	base

	registry *remotefunc.Registry
	function string
	postHook func(ctx context.Context, args map[string]any, raw json.RawMessage) (any, error)
}

// NewBridgeActionTool wraps the remote function named function, already
// Define'd on registry, as a tool. argsSchema documents the named
// positional arguments the function expects. postHook runs on a successful
// call to shape the tool's return value; pass nil to return the bridge's
// raw decoded result.
func NewBridgeActionTool(name, description, function string, registry *remotefunc.Registry, argsSchema map[string]any,
	postHook func(ctx context.Context, args map[string]any, raw json.RawMessage) (any, error)) (*BridgeActionTool, error) {
	var input *Schema
	if argsSchema != nil {
		var err error
		input, err = FromDocument(argsSchema)
		if err != nil {
			return nil, err
		}
	}

	return &BridgeActionTool{
		base: base{
			name:        name,
			description: description,
			kind:        KindBridgeAction,
			annotations: Annotations{ReadOnly: false, Idempotent: false},
			input:       input,
		},
		registry: registry,
		function: function,
		postHook: postHook,
	}, nil
}

func (t *BridgeActionTool) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	var args map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, voxerr.Wrap(voxerr.InvalidArgument, "tool.invalid_json", "arguments are not valid JSON", err)
		}
	}

	result, err := t.registry.Invoke(ctx, t.function, args)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		msg := "remote function call failed"
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, voxerr.New(voxerr.BridgeError, "tool.bridge_action_failed", msg)
	}

	if t.postHook != nil {
		return t.postHook(ctx, args, result.Result)
	}

	if len(result.Result) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(result.Result, &decoded); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "tool.bridge_result_decode", "failed to decode bridge result", err)
	}
	return decoded, nil
}
