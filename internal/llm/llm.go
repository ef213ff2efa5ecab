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

// Package llm abstracts "given a model identifier, messages, tools, and a
// generation config, return a response stream" across provider backends.
//
// The interface and the GenerateConfig/Response shapes are carried over from
// pkg/model/model.go: a single GenerateContent method handling both
// streaming and non-streaming via iter.Seq2, a StreamingAggregator turning
// provider-specific chunks into partial/aggregated Responses, and a deep-copy
// Clone() on GenerateConfig so a shared base config can be specialized per
// call without aliasing. What changes is the message representation: the
// teacher threads a2a.Message/a2a.Part through this layer because its agents
// talk over the A2A inter-agent wire protocol; this system is single-process,
// so Message/Part are local types instead.
package llm

import (
	"context"
	"iter"
)

// LLM is the interface for language models. One call handles both
// streaming and non-streaming generation; callers distinguish partial
// chunks from the final aggregated response via Response.Partial.
type LLM interface {
	// Name returns the model identifier (e.g. "gpt-4o", "gemini-2.0-flash").
	Name() string

	// Provider returns the provider type, used for model-specific request
	// shaping and error classification.
	Provider() Provider

	// GenerateContent produces responses for req. With stream=false it
	// yields exactly one Response (Partial=false). With stream=true it
	// yields zero or more partial Responses followed by one aggregated
	// Response. Cancelling ctx aborts an in-flight stream; the iterator
	// then yields ctx.Err() and stops.
	GenerateContent(ctx context.Context, req *Request, stream bool) iter.Seq2[*Response, error]

	// Close releases resources held by the LLM (idle connections, SDK
	// clients). Safe to call once after the LLM is no longer needed.
	Close() error
}

// Provider identifies the LLM provider, used for model-specific message
// formatting and error classification.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderUnknown   Provider = "unknown"
)

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn of the conversation.
type Message struct {
	Role  Role
	Parts []Part
}

// Part is a piece of message content. Exactly one of Text, ToolCall, or
// ToolResult is set.
type Part struct {
	Text       string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// TextPart builds a text-only Part.
func TextPart(text string) Part { return Part{Text: text} }

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is the outcome of a tool invocation, fed back into the
// conversation so the model can continue.
type ToolResult struct {
	ToolCallID string
	ToolName   string
	Content    string
	Error      string
}

// ToolDefinition describes a tool available to the model, derived from a
// tool.Tool's name, description, and input schema document.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is the input to an LLM call.
type Request struct {
	Messages          []*Message
	Tools             []ToolDefinition
	Config            *GenerateConfig
	SystemInstruction string
}

// GenerateConfig configures a single generation call.
type GenerateConfig struct {
	Temperature          *float64
	MaxTokens            *int
	TopP                 *float64
	TopK                 *int
	StopSequences        []string
	ResponseMIMEType     string
	ResponseSchema       map[string]any
	ResponseSchemaName   string
	ResponseSchemaStrict *bool
	EnableThinking       bool
	ThinkingBudget       int
	Metadata             map[string]string
}

// Clone deep-copies c so a shared base config can be specialized per call
// (e.g. an agent overriding temperature for one step) without aliasing the
// original's pointers, slices, or maps.
func (c *GenerateConfig) Clone() *GenerateConfig {
	if c == nil {
		return nil
	}

	clone := *c

	if c.Temperature != nil {
		v := *c.Temperature
		clone.Temperature = &v
	}
	if c.MaxTokens != nil {
		v := *c.MaxTokens
		clone.MaxTokens = &v
	}
	if c.TopP != nil {
		v := *c.TopP
		clone.TopP = &v
	}
	if c.TopK != nil {
		v := *c.TopK
		clone.TopK = &v
	}
	if c.StopSequences != nil {
		clone.StopSequences = make([]string, len(c.StopSequences))
		copy(clone.StopSequences, c.StopSequences)
	}
	if c.ResponseSchema != nil {
		clone.ResponseSchema = deepCopyMap(c.ResponseSchema)
	}
	if c.ResponseSchemaStrict != nil {
		v := *c.ResponseSchemaStrict
		clone.ResponseSchemaStrict = &v
	}
	if c.Metadata != nil {
		clone.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			clone.Metadata[k] = v
		}
	}

	return &clone
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			result[k] = deepCopyMap(val)
		case []any:
			result[k] = deepCopySlice(val)
		default:
			result[k] = v
		}
	}
	return result
}

func deepCopySlice(s []any) []any {
	if s == nil {
		return nil
	}
	result := make([]any, len(s))
	for i, v := range s {
		switch val := v.(type) {
		case map[string]any:
			result[i] = deepCopyMap(val)
		case []any:
			result[i] = deepCopySlice(val)
		default:
			result[i] = v
		}
	}
	return result
}

// Response is the result of one generation step.
type Response struct {
	Content      *Content
	Partial      bool
	TurnComplete bool
	ToolCalls    []ToolCall
	Usage        *Usage
	Thinking     *ThinkingBlock
	FinishReason FinishReason
	ErrorCode    string
	ErrorMessage string
}

// Content carries the generated parts for one Response.
type Content struct {
	Parts []Part
	Role  Role
}

// Usage reports token counts for one generation call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ThinkingTokens   int
}

// ThinkingBlock carries a model's extended-reasoning output, when enabled.
type ThinkingBlock struct {
	ID        string
	Content   string
	Signature string
}

// FinishReason reports why generation stopped.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonContent   FinishReason = "content_filter"
	FinishReasonError     FinishReason = "error"
)

// TextContent concatenates the text parts of the response.
func (r *Response) TextContent() string {
	if r == nil || r.Content == nil {
		return ""
	}
	var text string
	for _, p := range r.Content.Parts {
		text += p.Text
	}
	return text
}

// HasToolCalls reports whether the response requested any tool calls.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// ToMessage converts a Response into a Message for appending to history.
func (r *Response) ToMessage() *Message {
	if r == nil || r.Content == nil {
		return nil
	}
	return &Message{Role: r.Content.Role, Parts: r.Content.Parts}
}
