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

// Package llm's Gemini adapter is ported from pkg/model/gemini/gemini.go,
// the teacher's one LLM provider backed by an official SDK
// (google.golang.org/genai) rather than a hand-rolled HTTP client. The
// request/response conversion and streaming-through-the-aggregator pattern
// are kept; a2a.Message/a2a.Part are replaced with this package's local
// Message/Part.
package llm

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"
)

// GeminiConfig configures a Gemini-backed LLM.
type GeminiConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int
}

type geminiModel struct {
	client *genai.Client
	name   string
	config GeminiConfig
}

// NewGemini creates an LLM backed by the official Gemini SDK.
func NewGemini(ctx context.Context, cfg GeminiConfig) (LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("llm: creating gemini client: %w", err)
	}

	return &geminiModel{client: client, name: cfg.Model, config: cfg}, nil
}

func (m *geminiModel) Name() string       { return m.name }
func (m *geminiModel) Provider() Provider { return ProviderGemini }
func (m *geminiModel) Close() error       { return nil }

func (m *geminiModel) GenerateContent(ctx context.Context, req *Request, stream bool) iter.Seq2[*Response, error] {
	if stream {
		return m.generateStream(ctx, req)
	}
	return func(yield func(*Response, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *geminiModel) generate(ctx context.Context, req *Request) (*Response, error) {
	contents, systemInstruction := m.buildRequest(req)
	config := m.buildConfig(req.Config, systemInstruction, req.Tools)

	genResp, err := m.client.Models.GenerateContent(ctx, m.name, contents, config)
	if err != nil {
		return nil, fmt.Errorf("llm: gemini generation: %w", err)
	}
	return m.parseResponse(genResp)
}

func (m *geminiModel) generateStream(ctx context.Context, req *Request) iter.Seq2[*Response, error] {
	aggregator := NewStreamingAggregator()

	return func(yield func(*Response, error) bool) {
		contents, systemInstruction := m.buildRequest(req)
		config := m.buildConfig(req.Config, systemInstruction, req.Tools)

		for genResp, err := range m.client.Models.GenerateContentStream(ctx, m.name, contents, config) {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("llm: gemini streaming: %w", err))
				return
			}

			for resp, perr := range m.processStreamChunk(aggregator, genResp) {
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

func (m *geminiModel) processStreamChunk(agg *StreamingAggregator, genResp *genai.GenerateContentResponse) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		if len(genResp.Candidates) == 0 {
			return
		}
		candidate := genResp.Candidates[0]

		if candidate.FinishReason != "" {
			agg.SetFinishReason(mapFinishReason(candidate.FinishReason))
		}
		if genResp.UsageMetadata != nil {
			agg.SetUsage(&Usage{
				PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
			})
		}

		if candidate.Content == nil {
			return
		}
		for _, part := range candidate.Content.Parts {
			if len(part.ThoughtSignature) > 0 {
				agg.ProcessThinkingComplete(agg.ThinkingText(), string(part.ThoughtSignature))
			}
			if part.Text != "" {
				if part.Thought {
					for resp, err := range agg.ProcessThinkingDelta(part.Text) {
						if !yield(resp, err) {
							return
						}
					}
				} else {
					for resp, err := range agg.ProcessTextDelta(part.Text) {
						if !yield(resp, err) {
							return
						}
					}
				}
			}
			if part.FunctionCall != nil {
				tc := ToolCall{ID: part.FunctionCall.ID, Name: part.FunctionCall.Name, Args: part.FunctionCall.Args}
				for resp, err := range agg.ProcessToolCall(tc) {
					if !yield(resp, err) {
						return
					}
				}
			}
		}
	}
}

func (m *geminiModel) buildRequest(req *Request) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemInstruction *genai.Content

	if req.SystemInstruction != "" {
		systemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
			Role:  "user",
		}
	}

	for _, msg := range req.Messages {
		if content := m.messageToContent(msg); content != nil {
			contents = append(contents, content)
		}
	}

	return contents, systemInstruction
}

func (m *geminiModel) messageToContent(msg *Message) *genai.Content {
	if msg == nil {
		return nil
	}

	var parts []*genai.Part
	for _, p := range msg.Parts {
		switch {
		case p.ToolCall != nil:
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{ID: p.ToolCall.ID, Name: p.ToolCall.Name, Args: p.ToolCall.Args},
			})
		case p.ToolResult != nil:
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       p.ToolResult.ToolCallID,
					Name:     p.ToolResult.ToolName,
					Response: map[string]any{"result": p.ToolResult.Content},
				},
			})
		case p.Text != "":
			parts = append(parts, &genai.Part{Text: p.Text})
		}
	}
	if len(parts) == 0 {
		return nil
	}

	role := "user"
	if msg.Role == RoleAssistant {
		role = "model"
	}
	return &genai.Content{Parts: parts, Role: role}
}

func (m *geminiModel) buildConfig(cfg *GenerateConfig, systemInstruction *genai.Content, tools []ToolDefinition) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}

	if cfg != nil {
		if cfg.Temperature != nil {
			config.Temperature = genai.Ptr(float32(*cfg.Temperature))
		}
		if cfg.MaxTokens != nil {
			config.MaxOutputTokens = int32(*cfg.MaxTokens)
		}
		if cfg.TopP != nil {
			config.TopP = genai.Ptr(float32(*cfg.TopP))
		}
		if cfg.TopK != nil {
			config.TopK = genai.Ptr(float32(*cfg.TopK))
		}
		if len(cfg.StopSequences) > 0 {
			config.StopSequences = cfg.StopSequences
		}
		if cfg.ResponseMIMEType != "" {
			config.ResponseMIMEType = cfg.ResponseMIMEType
		}
		if cfg.ResponseSchema != nil {
			config.ResponseSchema = toGenaiSchema(cfg.ResponseSchema)
			if config.ResponseMIMEType == "" {
				config.ResponseMIMEType = "application/json"
			}
		}
		if cfg.EnableThinking {
			thinkingConfig := &genai.ThinkingConfig{IncludeThoughts: true}
			if cfg.ThinkingBudget > 0 {
				budget := int32(cfg.ThinkingBudget)
				thinkingConfig.ThinkingBudget = &budget
			}
			config.ThinkingConfig = thinkingConfig
		}
	}

	if config.Temperature == nil && m.config.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(m.config.Temperature))
	}
	if config.MaxOutputTokens == 0 && m.config.MaxTokens > 0 {
		config.MaxOutputTokens = int32(m.config.MaxTokens)
	}

	if len(tools) > 0 {
		config.Tools = m.buildTools(tools)
	}

	return config
}

func (m *geminiModel) buildTools(tools []ToolDefinition) []*genai.Tool {
	var genaiTools []*genai.Tool
	for _, t := range tools {
		genaiTools = append(genaiTools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{Name: t.Name, Description: t.Description, Parameters: toGenaiSchema(t.Parameters)},
			},
		})
	}
	return genaiTools
}

func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}

	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}

	return s
}

func (m *geminiModel) parseResponse(genResp *genai.GenerateContentResponse) (*Response, error) {
	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("llm: empty response from gemini")
	}
	candidate := genResp.Candidates[0]

	resp := &Response{
		Partial:      false,
		TurnComplete: true,
		FinishReason: mapFinishReason(candidate.FinishReason),
	}

	if candidate.Content != nil {
		var parts []Part
		var toolCalls []ToolCall
		var thinkingText, thoughtSignature string

		for _, part := range candidate.Content.Parts {
			if len(part.ThoughtSignature) > 0 {
				thoughtSignature = string(part.ThoughtSignature)
			}
			if part.Text != "" {
				if part.Thought {
					thinkingText += part.Text
				} else {
					parts = append(parts, TextPart(part.Text))
				}
			}
			if part.FunctionCall != nil {
				tc := ToolCall{ID: part.FunctionCall.ID, Name: part.FunctionCall.Name, Args: part.FunctionCall.Args}
				toolCalls = append(toolCalls, tc)
				parts = append(parts, Part{ToolCall: &tc})
			}
		}

		role := RoleAssistant
		if candidate.Content.Role == "user" {
			role = RoleUser
		}

		resp.Content = &Content{Parts: parts, Role: role}
		resp.ToolCalls = toolCalls

		if thinkingText != "" {
			resp.Thinking = &ThinkingBlock{Content: thinkingText, Signature: thoughtSignature}
		}
	}

	if genResp.UsageMetadata != nil {
		resp.Usage = &Usage{
			PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
		}
	}

	return resp, nil
}

func mapFinishReason(reason genai.FinishReason) FinishReason {
	switch reason {
	case genai.FinishReasonStop:
		return FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return FinishReasonLength
	case genai.FinishReasonSafety:
		return FinishReasonContent
	default:
		return FinishReasonStop
	}
}

var _ LLM = (*geminiModel)(nil)
