package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAI_GenerateNonStreamingParsesTextAndUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.False(t, req.Stream)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{
				Message:      chatMessage{Role: "assistant", Content: "Agriculture unlocks Pottery."},
				FinishReason: "stop",
			}},
			Usage: &chatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}))
	defer server.Close()

	m, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: server.URL})
	require.NoError(t, err)

	req := &Request{Messages: []*Message{{Role: RoleUser, Parts: []Part{TextPart("What does Agriculture unlock?")}}}}

	var got *Response
	for resp, err := range m.GenerateContent(context.Background(), req, false) {
		require.NoError(t, err)
		got = resp
	}

	require.NotNil(t, got)
	assert.Equal(t, "Agriculture unlocks Pottery.", got.TextContent())
	assert.Equal(t, FinishReasonStop, got.FinishReason)
	require.NotNil(t, got.Usage)
	assert.Equal(t, 15, got.Usage.TotalTokens)
}

func TestOpenAI_GenerateNonStreamingParsesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{
				Message: chatMessage{
					Role: "assistant",
					ToolCalls: []chatToolCall{{
						ID:       "call_1",
						Type:     "function",
						Function: chatToolCallFunc{Name: "database_query", Arguments: `{"search":"Agriculture"}`},
					}},
				},
				FinishReason: "tool_calls",
			}},
		})
	}))
	defer server.Close()

	m, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	req := &Request{Messages: []*Message{{Role: RoleUser, Parts: []Part{TextPart("look it up")}}}}

	var got *Response
	for resp, err := range m.GenerateContent(context.Background(), req, false) {
		require.NoError(t, err)
		got = resp
	}

	require.NotNil(t, got)
	require.True(t, got.HasToolCalls())
	assert.Equal(t, "database_query", got.ToolCalls[0].Name)
	assert.Equal(t, "Agriculture", got.ToolCalls[0].Args["search"])
	assert.Equal(t, FinishReasonToolCalls, got.FinishReason)
}

func TestOpenAI_GenerateStreamYieldsPartialsThenAggregated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		chunks := []chatResponse{
			{Choices: []chatChoice{{Delta: chatMessage{Content: "Hello"}}}},
			{Choices: []chatChoice{{Delta: chatMessage{Content: ", world"}}}},
			{Choices: []chatChoice{{FinishReason: "stop"}}},
		}
		for _, c := range chunks {
			b, _ := json.Marshal(c)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
		fmt.Fprintf(w, "data: %s\n\n", sseDoneSentinel)
		flusher.Flush()
	}))
	defer server.Close()

	m, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	req := &Request{Messages: []*Message{{Role: RoleUser, Parts: []Part{TextPart("hi")}}}}

	var responses []*Response
	for resp, err := range m.GenerateContent(context.Background(), req, true) {
		require.NoError(t, err)
		responses = append(responses, resp)
	}

	require.NotEmpty(t, responses)
	final := responses[len(responses)-1]
	assert.False(t, final.Partial)
	assert.Equal(t, "Hello, world", final.TextContent())

	for _, r := range responses[:len(responses)-1] {
		assert.True(t, r.Partial)
	}
}
