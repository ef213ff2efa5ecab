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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/httpclient"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/tool"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

const (
	// maxSteps is the step loop's safety cap (§4.A1 step 6).
	maxSteps = 10

	// maxNudgeRetries is how many times CallAgent retries a run that
	// terminated with zero meaningful steps before giving up.
	maxNudgeRetries = 3

	// maxProviderRetries is the per-step LLM call retry budget for
	// timeouts, rate limits, and other transient provider errors.
	maxProviderRetries = 3

	nudgeMessage = "execute the tool call appropriately"
)

// ModelResolver obtains the LLM backing a model tier hint (e.g. "default",
// "fast", "reasoning"), with any per-call overrides already applied.
type ModelResolver func(tier string) (llm.LLM, error)

// Runtime is the process-wide A1 agent runtime: an agent registry, a tool
// catalog reference, and the default model resolver.
type Runtime struct {
	mu     sync.RWMutex
	agents map[string]Agent

	catalog *tool.Catalog
	resolve ModelResolver
	tracer  trace.Tracer
}

// NewRuntime returns a runtime dispatching tool calls through catalog and
// resolving models through resolve.
func NewRuntime(catalog *tool.Catalog, resolve ModelResolver) *Runtime {
	return &Runtime{
		agents:  make(map[string]Agent),
		catalog: catalog,
		resolve: resolve,
		tracer:  otel.Tracer("vox-deorum/agentruntime"),
	}
}

// Register adds a to the agent registry. Registering two agents under the
// same name is a programming error and panics, matching the tool catalog's
// fail-fast stance on duplicate registration.
func (r *Runtime) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.Name()]; exists {
		panic(fmt.Sprintf("agent %q already registered", a.Name()))
	}
	r.agents[a.Name()] = a
}

func (r *Runtime) lookup(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, voxerr.New(voxerr.NotFound, "agentruntime.agent_not_found", fmt.Sprintf("agent %q is not registered", name))
	}
	return a, nil
}

func (r *Runtime) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for n := range r.agents {
		names = append(names, n)
	}
	return names
}

// Result is CallAgent's outcome.
type Result struct {
	AgentName    string
	Text         string
	Structured   map[string]any
	Steps        int
	ToolCalls    []llm.ToolCall
	FinishReason llm.FinishReason
}

// Invoke adapts CallAgent to tool.AgentInvoker, the shape the C1 tool
// catalog's agent-callable tools dispatch through.
func (r *Runtime) Invoke(ctx context.Context, agentName string, input map[string]any) (map[string]any, error) {
	res, err := r.CallAgent(ctx, agentName, input, map[string]any{}, nil)
	if err != nil {
		return nil, err
	}
	if res.Structured != nil {
		return res.Structured, nil
	}
	return map[string]any{"output": res.Text}, nil
}

// CallAgent performs §4.A1's nine-step agent invocation: look up the agent,
// open a span, build the effective tool map (catalog tools plus
// call_<otherAgent> wrappers guarded against recursion), resolve the model,
// assemble initial messages, run the step loop, and close the span with its
// status, step count, tool-call count and finish reason. If outputSchema is supplied
// the final response requests structured output; otherwise CallAgent
// returns the final text.
func (r *Runtime) CallAgent(ctx context.Context, name string, input, parameters map[string]any, outputSchema map[string]any) (*Result, error) {
	chain := callChain(ctx)
	if inChain(chain, name) {
		return nil, voxerr.New(voxerr.InvalidArgument, "agentruntime.recursive_call", fmt.Sprintf("agent %q would recursively call itself", name))
	}

	agent, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	if parameters == nil {
		parameters = map[string]any{}
	}
	parameters["running"] = name

	ctx, span := r.tracer.Start(ctx, "agent."+name)
	defer span.End()
	ctx = withCallChain(ctx, append(append([]string{}, chain...), name))

	model, err := r.resolve(agent.ModelTier())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model resolution failed")
		return nil, voxerr.Wrap(voxerr.DependencyFailed, "agentruntime.model_unavailable", "failed to resolve model for agent", err)
	}

	toolMap := r.effectiveTools(ctx, agent)

	var result *Result
	for attempt := 0; attempt <= maxNudgeRetries; attempt++ {
		messages := r.initialMessages(agent, parameters, input)
		if attempt > 0 {
			// Zero meaningful steps: nudge and retry the whole run
			// (§4.A1 step 6). The retry happens whether the previous run
			// ended through StopCheck or through the step cap.
			messages = append(messages, &llm.Message{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(nudgeMessage)}})
		}

		history, err := r.runSteps(ctx, agent, model, toolMap, messages, parameters)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "step loop failed")
			return nil, err
		}

		result = summarize(name, history)

		if anyMeaningful(history) || attempt == maxNudgeRetries {
			break
		}
	}

	if outputSchema != nil {
		structured, err := parseStructured(result.Text, outputSchema)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "structured output parse failed")
			return nil, err
		}
		result.Structured = structured
	}

	span.SetAttributes(
		attribute.Int("agent.steps", result.Steps),
		attribute.Int("agent.tool_calls", len(result.ToolCalls)),
		attribute.String("agent.finish_reason", string(result.FinishReason)),
	)
	span.SetStatus(codes.Ok, "")

	return result, nil
}

func anyMeaningful(history []*StepResult) bool {
	for _, s := range history {
		if s.Meaningful() {
			return true
		}
	}
	return false
}

func summarize(name string, history []*StepResult) *Result {
	res := &Result{AgentName: name, Steps: len(history)}
	for _, s := range history {
		if s.Response == nil {
			continue
		}
		res.ToolCalls = append(res.ToolCalls, s.Response.ToolCalls...)
		res.FinishReason = s.Response.FinishReason
		if text := s.Response.TextContent(); text != "" {
			res.Text = text
		}
	}
	return res
}

// runSteps executes the step loop for one run: repeatedly call the model,
// execute any tool calls, and append results, until StopCheck fires,
// cancellation occurs, or the safety cap is reached.
func (r *Runtime) runSteps(ctx context.Context, agent Agent, model llm.LLM, toolMap map[string]tool.Tool, messages []*llm.Message, parameters map[string]any) ([]*StepResult, error) {
	var history []*StepResult
	active := agent.ActiveTools()

	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return history, nil
		}

		prep := agent.PrepareStep(step, history)
		if prep.ToolWhitelist != nil {
			active = prep.ToolWhitelist
		}
		messages = append(messages, prep.ExtraMessages...)

		req := &llm.Request{
			Messages:          messages,
			Tools:             toolDefinitions(toolMap, active),
			SystemInstruction: agent.SystemPrompt(parameters),
			Config:            prep.ConfigOverride,
		}

		resp, err := callWithRetry(ctx, model, req)
		if err != nil {
			return history, voxerr.Wrap(voxerr.DependencyFailed, "agentruntime.generate_failed", "model call failed", err)
		}

		if msg := resp.ToMessage(); msg != nil {
			messages = append(messages, msg)
		}

		stepResult := &StepResult{Response: resp}
		if resp.HasToolCalls() {
			results := r.executeToolCalls(ctx, toolMap, resp.ToolCalls)
			stepResult.ToolResults = results
			messages = append(messages, toolResultMessage(results))
		}
		history = append(history, stepResult)

		if stop, _ := agent.StopCheck(history); stop {
			return history, nil
		}
	}

	return history, nil
}

// callWithRetry calls model.GenerateContent non-streaming, retrying
// transient provider errors with exponential backoff (base 2, cap 30s,
// §4.A1 step 7).
func callWithRetry(ctx context.Context, model llm.LLM, req *llm.Request) (*llm.Response, error) {
	op := func() (*llm.Response, error) {
		var resp *llm.Response
		for r, err := range model.GenerateContent(ctx, req, false) {
			if err != nil {
				if isRetryable(err) {
					return nil, err
				}
				return nil, backoff.Permanent(err)
			}
			resp = r
		}
		if resp == nil {
			return nil, backoff.Permanent(errors.New("model returned no response"))
		}
		return resp, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxInterval = 30 * time.Second
	policy.Multiplier = 2

	return backoff.Retry(ctx, op, backoff.WithBackOff(policy), backoff.WithMaxTries(maxProviderRetries))
}

func isRetryable(err error) bool {
	var re *httpclient.RetryableError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}
	// Default to retryable: most provider SDK errors surfaced here are
	// network/timeout failures rather than client-side validation errors.
	return true
}

func toolResultMessage(results []llm.ToolResult) *llm.Message {
	parts := make([]llm.Part, len(results))
	for i, res := range results {
		r := res
		parts[i] = llm.Part{ToolResult: &r}
	}
	return &llm.Message{Role: llm.RoleTool, Parts: parts}
}
