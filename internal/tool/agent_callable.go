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

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// AgentInvoker calls a named sub-agent with an input map and returns its
// final output. It is implemented by the agent runtime and injected here
// rather than imported directly: the runtime needs the Tool interface to
// expose agents-as-tools (§4.A1's "an agent is itself callable as a tool"),
// so a direct import would cycle. The cycle between the agent runtime and
// the tool catalog is broken the same way any package-cycle gets broken in
// Go: through an interface the lower-level package owns, rather than a
// concrete type reference.
type AgentInvoker func(ctx context.Context, agentName string, input map[string]any) (map[string]any, error)

// AgentCallableArgs is the uniform input shape for agent-callable tools.
type AgentCallableArgs struct {
	Input map[string]any `json:"input" jsonschema:"description=Structured input passed to the sub-agent"`
}

// AgentCallableTool exposes one named agent from the A2 catalog as a tool,
// so orchestrating agents (e.g. a deliberative strategist) can delegate to
// specialist agents (e.g. a Military briefer) the same way they call any
// other tool.
type AgentCallableTool struct {
	base

	agentName string
	invoke    AgentInvoker
}

// NewAgentCallableTool wraps agentName, dispatched through invoke.
func NewAgentCallableTool(name, description, agentName string, invoke AgentInvoker, inputSchema, outputSchema map[string]any) (*AgentCallableTool, error) {
	var input, output *Schema
	var err error
	if inputSchema != nil {
		if input, err = FromDocument(inputSchema); err != nil {
			return nil, err
		}
	}
	if outputSchema != nil {
		if output, err = FromDocument(outputSchema); err != nil {
			return nil, err
		}
	}

	return &AgentCallableTool{
		base: base{
			name:        name,
			description: description,
			kind:        KindAgentCallable,
			annotations: Annotations{ReadOnly: false, Idempotent: false},
			input:       input,
			output:      output,
		},
		agentName: agentName,
		invoke:    invoke,
	}, nil
}

func (t *AgentCallableTool) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	var input map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &input); err != nil {
			return nil, voxerr.Wrap(voxerr.InvalidArgument, "tool.invalid_json", "arguments are not valid JSON", err)
		}
	}

	out, err := t.invoke(ctx, t.agentName, input)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.DependencyFailed, "tool.agent_call_failed", "sub-agent invocation failed", err)
	}
	return out, nil
}
