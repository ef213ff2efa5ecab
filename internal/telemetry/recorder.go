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

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// Recorder is the domain-scoped metrics surface for vox-deorum: agent
// invocations, tool calls, LLM calls, and turn outcomes. Trimmed down from
// pkg/observability/recorder.go's much larger Recorder interface (which
// also covers memory/RAG/session/gRPC metrics that have no counterpart in
// this domain).
type Recorder interface {
	// RecordAgentCall records one agent invocation's outcome and latency.
	RecordAgentCall(ctx context.Context, agentName string, success bool, duration float64)
	// RecordToolCall records one tool invocation's outcome and latency.
	RecordToolCall(ctx context.Context, toolName string, success bool, duration float64)
	// RecordLLMCall records one LLM request's latency and token usage.
	RecordLLMCall(ctx context.Context, provider, model string, success bool, duration float64, inputTokens, outputTokens int64)
	// RecordTurn records one simulated turn's total duration and whether any
	// agent fell back to the deterministic default.
	RecordTurn(ctx context.Context, player int, duration float64, fellBack bool)
}

// otelRecorder implements Recorder over OTel metric instruments, exported
// via go.opentelemetry.io/otel/exporters/prometheus (which registers with
// prometheus/client_golang's default registry), so a single implementation
// exercises both libraries at once.
type otelRecorder struct {
	agentCalls    metric.Int64Counter
	agentDuration metric.Float64Histogram

	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram

	llmCalls        metric.Int64Counter
	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter

	turnDuration metric.Float64Histogram
	turnFallback metric.Int64Counter
}

var _ Recorder = (*otelRecorder)(nil)

func newOTelRecorder(meter metric.Meter) (*otelRecorder, error) {
	r := &otelRecorder{}

	var err error
	if r.agentCalls, err = meter.Int64Counter("vox_agent_calls_total",
		metric.WithDescription("Total number of agent invocations")); err != nil {
		return nil, wrapInstrumentErr("agent_calls_total", err)
	}
	if r.agentDuration, err = meter.Float64Histogram("vox_agent_call_duration_ms",
		metric.WithDescription("Agent invocation duration in milliseconds")); err != nil {
		return nil, wrapInstrumentErr("agent_call_duration_ms", err)
	}
	if r.toolCalls, err = meter.Int64Counter("vox_tool_calls_total",
		metric.WithDescription("Total number of tool invocations")); err != nil {
		return nil, wrapInstrumentErr("tool_calls_total", err)
	}
	if r.toolDuration, err = meter.Float64Histogram("vox_tool_call_duration_ms",
		metric.WithDescription("Tool invocation duration in milliseconds")); err != nil {
		return nil, wrapInstrumentErr("tool_call_duration_ms", err)
	}
	if r.llmCalls, err = meter.Int64Counter("vox_llm_calls_total",
		metric.WithDescription("Total number of LLM requests")); err != nil {
		return nil, wrapInstrumentErr("llm_calls_total", err)
	}
	if r.llmDuration, err = meter.Float64Histogram("vox_llm_call_duration_ms",
		metric.WithDescription("LLM request duration in milliseconds")); err != nil {
		return nil, wrapInstrumentErr("llm_call_duration_ms", err)
	}
	if r.llmInputTokens, err = meter.Int64Counter("vox_llm_input_tokens_total",
		metric.WithDescription("Total LLM input (prompt) tokens consumed")); err != nil {
		return nil, wrapInstrumentErr("llm_input_tokens_total", err)
	}
	if r.llmOutputTokens, err = meter.Int64Counter("vox_llm_output_tokens_total",
		metric.WithDescription("Total LLM output (completion) tokens produced")); err != nil {
		return nil, wrapInstrumentErr("llm_output_tokens_total", err)
	}
	if r.turnDuration, err = meter.Float64Histogram("vox_turn_duration_ms",
		metric.WithDescription("Total decision-layer duration per turn in milliseconds")); err != nil {
		return nil, wrapInstrumentErr("turn_duration_ms", err)
	}
	if r.turnFallback, err = meter.Int64Counter("vox_turn_fallback_total",
		metric.WithDescription("Total turns where at least one agent fell back to its deterministic default")); err != nil {
		return nil, wrapInstrumentErr("turn_fallback_total", err)
	}

	return r, nil
}

func wrapInstrumentErr(name string, err error) error {
	return voxerr.Wrap(voxerr.Internal, "telemetry.new_instrument", "failed to build metric instrument "+name, err)
}

func (r *otelRecorder) RecordAgentCall(ctx context.Context, agentName string, success bool, duration float64) {
	attrs := metric.WithAttributes(attribute.String("agent", agentName), attribute.Bool("success", success))
	r.agentCalls.Add(ctx, 1, attrs)
	r.agentDuration.Record(ctx, duration, attrs)
}

func (r *otelRecorder) RecordToolCall(ctx context.Context, toolName string, success bool, duration float64) {
	attrs := metric.WithAttributes(attribute.String("tool", toolName), attribute.Bool("success", success))
	r.toolCalls.Add(ctx, 1, attrs)
	r.toolDuration.Record(ctx, duration, attrs)
}

func (r *otelRecorder) RecordLLMCall(ctx context.Context, provider, model string, success bool, duration float64, inputTokens, outputTokens int64) {
	attrs := metric.WithAttributes(attribute.String("provider", provider), attribute.String("model", model), attribute.Bool("success", success))
	r.llmCalls.Add(ctx, 1, attrs)
	r.llmDuration.Record(ctx, duration, attrs)

	tokenAttrs := metric.WithAttributes(attribute.String("provider", provider), attribute.String("model", model))
	r.llmInputTokens.Add(ctx, inputTokens, tokenAttrs)
	r.llmOutputTokens.Add(ctx, outputTokens, tokenAttrs)
}

func (r *otelRecorder) RecordTurn(ctx context.Context, player int, duration float64, fellBack bool) {
	attrs := metric.WithAttributes(attribute.Int("player", player))
	r.turnDuration.Record(ctx, duration, attrs)
	if fellBack {
		r.turnFallback.Add(ctx, 1, attrs)
	}
}

// NoopRecorder discards every call; used when telemetry is disabled.
// Grounded on pkg/observability/noop.go's NoopMetrics.
type NoopRecorder struct{}

var _ Recorder = NoopRecorder{}

func (NoopRecorder) RecordAgentCall(context.Context, string, bool, float64)                  {}
func (NoopRecorder) RecordToolCall(context.Context, string, bool, float64)                   {}
func (NoopRecorder) RecordLLMCall(context.Context, string, string, bool, float64, int64, int64) {}
func (NoopRecorder) RecordTurn(context.Context, int, float64, bool)                          {}
