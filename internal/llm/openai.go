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

// Package llm's OpenAI adapter is ported from pkg/model/openai/openai.go's
// overall shape (hand-rolled HTTP via the teacher's own httpclient retry
// wrapper, unified GenerateContent over the aggregator, an SSE read loop
// keyed on "data: " lines with a terminal sentinel) but targets the Chat
// Completions endpoint rather than the Responses API: Chat Completions'
// wire format is a stable, minimal surface we can implement confidently
// without the Go toolchain available to verify against the real API.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/httpclient"
)

const (
	openAIDefaultBaseURL   = "https://api.openai.com/v1"
	openAIDefaultModel     = "gpt-4o"
	openAIDefaultMaxTokens = 4096
	openAIDefaultTimeout   = 120 * time.Second

	sseDoneSentinel = "[DONE]"
)

// OpenAIConfig configures an OpenAI-compatible chat completions client.
// BaseURL defaults to OpenAI's own API but can point at any Chat
// Completions-compatible endpoint (local proxies, Azure-style gateways).
type OpenAIConfig struct {
	APIKey     string
	Model      string
	MaxTokens  int
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type openAIModel struct {
	http      *httpclient.Client
	apiKey    string
	baseURL   string
	modelName string
	maxTokens int
}

// NewOpenAI creates an LLM talking to an OpenAI-compatible Chat Completions
// endpoint, retrying transient failures via internal/httpclient.
func NewOpenAI(cfg OpenAIConfig) (LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: openai API key is required")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = openAIDefaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = openAIDefaultMaxTokens
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = openAIDefaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}

	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		httpclient.WithMaxRetries(maxRetries),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIRateLimitHeaders),
	)

	return &openAIModel{http: client, apiKey: cfg.APIKey, baseURL: baseURL, modelName: modelName, maxTokens: maxTokens}, nil
}

func (m *openAIModel) Name() string       { return m.modelName }
func (m *openAIModel) Provider() Provider { return ProviderOpenAI }
func (m *openAIModel) Close() error       { return nil }

func (m *openAIModel) GenerateContent(ctx context.Context, req *Request, stream bool) iter.Seq2[*Response, error] {
	if stream {
		return m.generateStream(ctx, req)
	}
	return func(yield func(*Response, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatToolCallFunc `json:"function"`
}

type chatToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	Delta        chatMessage `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage"`
}

func (m *openAIModel) generate(ctx context.Context, req *Request) (*Response, error) {
	apiReq := m.buildRequest(req, false)

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("llm: marshaling openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.chatURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: building openai request: %w", err)
	}
	m.setHeaders(httpReq)

	resp, err := m.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm: openai API error (status %d): %s", resp.StatusCode, string(b))
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("llm: decoding openai response: %w", err)
	}

	return m.parseResponse(&apiResp)
}

func (m *openAIModel) generateStream(ctx context.Context, req *Request) iter.Seq2[*Response, error] {
	aggregator := NewStreamingAggregator()

	return func(yield func(*Response, error) bool) {
		apiReq := m.buildRequest(req, true)

		body, err := json.Marshal(apiReq)
		if err != nil {
			yield(nil, fmt.Errorf("llm: marshaling openai request: %w", err))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.chatURL(), bytes.NewReader(body))
		if err != nil {
			yield(nil, fmt.Errorf("llm: building openai request: %w", err))
			return
		}
		m.setHeaders(httpReq)

		resp, err := m.http.Do(httpReq)
		if err != nil {
			yield(nil, fmt.Errorf("llm: openai request failed: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			yield(nil, fmt.Errorf("llm: openai API error (status %d): %s", resp.StatusCode, string(b)))
			return
		}

		reader := bufio.NewReader(resp.Body)
		pendingCalls := map[int]*chatToolCall{}

		for {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}

			line, err := reader.ReadBytes('\n')
			if err != nil {
				if err == io.EOF {
					break
				}
				yield(nil, fmt.Errorf("llm: openai stream read error: %w", err))
				return
			}

			line = bytes.TrimSpace(line)
			if len(line) == 0 || !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			data := bytes.TrimSpace(line[len("data: "):])
			if string(data) == sseDoneSentinel {
				break
			}

			var chunk chatResponse
			if err := json.Unmarshal(data, &chunk); err != nil {
				continue
			}

			for resp, perr := range m.processStreamChunk(aggregator, &chunk, pendingCalls) {
				if !yield(resp, perr) {
					return
				}
			}
		}

		if final := aggregator.Close(); final != nil {
			yield(final, nil)
		}
	}
}

// processStreamChunk folds one SSE chunk's delta into the aggregator.
// OpenAI streams tool-call arguments as incremental string fragments
// indexed by position in the choice's tool_calls array, so fragments are
// buffered in pendingCalls until the stream's finish_reason arrives.
func (m *openAIModel) processStreamChunk(agg *StreamingAggregator, chunk *chatResponse, pendingCalls map[int]*chatToolCall) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		if chunk.Usage != nil {
			agg.SetUsage(&Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			})
		}

		if len(chunk.Choices) == 0 {
			return
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			for resp, err := range agg.ProcessTextDelta(choice.Delta.Content) {
				if !yield(resp, err) {
					return
				}
			}
		}

		for i, tc := range choice.Delta.ToolCalls {
			existing, ok := pendingCalls[i]
			if !ok {
				call := tc
				pendingCalls[i] = &call
				continue
			}
			existing.Function.Arguments += tc.Function.Arguments
			if tc.ID != "" {
				existing.ID = tc.ID
			}
			if tc.Function.Name != "" {
				existing.Function.Name = tc.Function.Name
			}
		}

		if choice.FinishReason != "" {
			agg.SetFinishReason(mapOpenAIFinishReason(choice.FinishReason))

			for _, call := range pendingCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(call.Function.Arguments), &args)
				for resp, err := range agg.ProcessToolCall(ToolCall{ID: call.ID, Name: call.Function.Name, Args: args}) {
					if !yield(resp, err) {
						return
					}
				}
			}
		}
	}
}

func (m *openAIModel) buildRequest(req *Request, stream bool) *chatRequest {
	apiReq := &chatRequest{
		Model:     m.modelName,
		MaxTokens: m.maxTokens,
		Stream:    stream,
	}

	if req.SystemInstruction != "" {
		apiReq.Messages = append(apiReq.Messages, chatMessage{Role: "system", Content: req.SystemInstruction})
	}
	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, m.convertMessage(msg)...)
	}

	for _, t := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, chatTool{
			Type:     "function",
			Function: chatFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	if cfg := req.Config; cfg != nil {
		if cfg.MaxTokens != nil {
			apiReq.MaxTokens = *cfg.MaxTokens
		}
		apiReq.Temperature = cfg.Temperature
		apiReq.TopP = cfg.TopP
		apiReq.Stop = cfg.StopSequences
	}

	return apiReq
}

// convertMessage may expand one Message into several chat messages: a
// message mixing text and tool results becomes an assistant message (for
// any ToolCall parts) followed by one "tool" message per ToolResult, since
// Chat Completions represents tool outcomes as separate role:"tool" entries.
func (m *openAIModel) convertMessage(msg *Message) []chatMessage {
	role := "user"
	switch msg.Role {
	case RoleAssistant:
		role = "assistant"
	case RoleSystem:
		role = "system"
	}

	var text string
	var calls []chatToolCall
	var results []chatMessage

	for _, p := range msg.Parts {
		switch {
		case p.ToolCall != nil:
			args, _ := json.Marshal(p.ToolCall.Args)
			calls = append(calls, chatToolCall{
				ID:       p.ToolCall.ID,
				Type:     "function",
				Function: chatToolCallFunc{Name: p.ToolCall.Name, Arguments: string(args)},
			})
		case p.ToolResult != nil:
			results = append(results, chatMessage{
				Role:       "tool",
				ToolCallID: p.ToolResult.ToolCallID,
				Name:       p.ToolResult.ToolName,
				Content:    p.ToolResult.Content,
			})
		default:
			text += p.Text
		}
	}

	out := []chatMessage{{Role: role, Content: text, ToolCalls: calls}}
	return append(out, results...)
}

func (m *openAIModel) parseResponse(resp *chatResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: empty response from openai")
	}
	choice := resp.Choices[0]

	var parts []Part
	var toolCalls []ToolCall
	if choice.Message.Content != "" {
		parts = append(parts, TextPart(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		call := ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args}
		toolCalls = append(toolCalls, call)
		parts = append(parts, Part{ToolCall: &call})
	}

	out := &Response{
		Content:      &Content{Parts: parts, Role: RoleAssistant},
		Partial:      false,
		TurnComplete: true,
		ToolCalls:    toolCalls,
		FinishReason: mapOpenAIFinishReason(choice.FinishReason),
	}
	if resp.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return out, nil
}

func mapOpenAIFinishReason(reason string) FinishReason {
	switch reason {
	case "stop":
		return FinishReasonStop
	case "length":
		return FinishReasonLength
	case "tool_calls":
		return FinishReasonToolCalls
	case "content_filter":
		return FinishReasonContent
	default:
		return FinishReasonStop
	}
}

func (m *openAIModel) chatURL() string {
	return m.baseURL + "/chat/completions"
}

func (m *openAIModel) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

var _ LLM = (*openAIModel)(nil)
