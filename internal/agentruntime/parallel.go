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

package agentruntime

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// AgentCall is one entry of a parallel fan-out: Name is the sub-agent to
// invoke, Input/Parameters/OutputSchema are CallAgent's remaining arguments.
type AgentCall struct {
	Name         string
	Input        map[string]any
	Parameters   map[string]any
	OutputSchema map[string]any
}

// CallAgentsParallel issues every call concurrently and waits for all of
// them, the shape §4.A1's "Concurrency" note requires for the
// Briefed-Staffed strategist's Military/Economy/Diplomacy fan-out.
// Grounded on pkg/agent/workflowagent/parallel.go's errgroup-per-branch
// pattern, generalized from events-over-a-channel (parallel.go streams
// intermediate agent events) to one result per call, since this runtime's
// CallAgent is request/response rather than streaming.
//
// If any call fails, CallAgentsParallel cancels the remaining in-flight
// calls and returns the first error with a nil result slice; results of
// calls that had already succeeded are not returned.
func (r *Runtime) CallAgentsParallel(ctx context.Context, calls []AgentCall) ([]*Result, error) {
	results := make([]*Result, len(calls))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		group.Go(func() error {
			res, err := r.CallAgent(groupCtx, call.Name, call.Input, call.Parameters, call.OutputSchema)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
