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

package llm

import (
	"iter"

	"github.com/google/uuid"
)

// StreamingAggregator accumulates a provider's streaming chunks into partial
// Responses (for callers that want to observe text as it arrives) and one
// final aggregated Response (Partial=false, TurnComplete=true) suitable for
// appending to conversation history. Ported from v2/model/aggregator.go's
// StreamingAggregator, with a2a.Part/a2a.MessageRole replaced by this
// package's local Part/Role.
type StreamingAggregator struct {
	text         string
	thinkingText string
	role         Role
	toolCalls    []ToolCall
	usage        *Usage
	finishReason FinishReason

	thinkingID        string
	thinkingSignature string
}

// NewStreamingAggregator creates an aggregator for one generation call.
func NewStreamingAggregator() *StreamingAggregator {
	return &StreamingAggregator{role: RoleAssistant}
}

// ProcessTextDelta accumulates a text chunk and yields a partial Response
// carrying just that delta.
func (s *StreamingAggregator) ProcessTextDelta(text string) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		if text == "" {
			return
		}
		s.text += text
		yield(&Response{
			Content: &Content{Parts: []Part{TextPart(text)}, Role: s.role},
			Partial: true,
		}, nil)
	}
}

// ProcessThinkingDelta accumulates a reasoning-text chunk and yields a
// partial Response carrying the thinking delta.
func (s *StreamingAggregator) ProcessThinkingDelta(thinking string) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		if thinking == "" {
			return
		}
		if s.thinkingID == "" {
			s.thinkingID = "thinking_" + uuid.NewString()[:8]
		}
		s.thinkingText += thinking
		yield(&Response{
			Content:  &Content{Role: s.role},
			Partial:  true,
			Thinking: &ThinkingBlock{ID: s.thinkingID, Content: thinking},
		}, nil)
	}
}

// ProcessThinkingComplete records the final thinking text and, for
// providers that supply one, its verification signature.
func (s *StreamingAggregator) ProcessThinkingComplete(content, signature string) {
	if s.thinkingID == "" {
		s.thinkingID = "thinking_" + uuid.NewString()[:8]
	}
	s.thinkingText = content
	s.thinkingSignature = signature
}

// ThinkingText returns the thinking text accumulated so far.
func (s *StreamingAggregator) ThinkingText() string {
	return s.thinkingText
}

// ProcessToolCall records a complete tool call and yields a partial
// Response carrying it.
func (s *StreamingAggregator) ProcessToolCall(tc ToolCall) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		s.toolCalls = append(s.toolCalls, tc)
		yield(&Response{
			Content:   &Content{Role: s.role},
			Partial:   true,
			ToolCalls: []ToolCall{tc},
		}, nil)
	}
}

// SetUsage records token usage, typically reported once in a terminal chunk.
func (s *StreamingAggregator) SetUsage(usage *Usage) {
	s.usage = usage
}

// SetFinishReason records why the provider stopped generating.
func (s *StreamingAggregator) SetFinishReason(reason FinishReason) {
	s.finishReason = reason
}

// Close builds the final aggregated Response from everything accumulated
// since the aggregator was created (or since the last Close), then resets
// internal state so the aggregator can be reused for another turn. Returns
// nil if nothing was accumulated.
func (s *StreamingAggregator) Close() *Response {
	if s.text == "" && s.thinkingText == "" && len(s.toolCalls) == 0 {
		return nil
	}

	var parts []Part
	if s.text != "" {
		parts = append(parts, TextPart(s.text))
	}

	resp := &Response{
		Content:      &Content{Parts: parts, Role: s.role},
		Partial:      false,
		TurnComplete: true,
		ToolCalls:    s.toolCalls,
		Usage:        s.usage,
		FinishReason: s.finishReason,
	}
	if s.thinkingText != "" {
		resp.Thinking = &ThinkingBlock{ID: s.thinkingID, Content: s.thinkingText, Signature: s.thinkingSignature}
	}

	s.clear()
	return resp
}

func (s *StreamingAggregator) clear() {
	s.text = ""
	s.thinkingText = ""
	s.thinkingID = ""
	s.thinkingSignature = ""
	s.toolCalls = nil
	s.usage = nil
	s.finishReason = ""
}
