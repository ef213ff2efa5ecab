package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConfig_CloneDoesNotAliasPointersOrCollections(t *testing.T) {
	temp := 0.7
	maxTokens := 512
	strict := true

	cfg := &GenerateConfig{
		Temperature:          &temp,
		MaxTokens:            &maxTokens,
		StopSequences:        []string{"STOP"},
		ResponseSchema:       map[string]any{"type": "object", "nested": map[string]any{"a": 1}},
		ResponseSchemaStrict: &strict,
		Metadata:             map[string]string{"k": "v"},
	}

	clone := cfg.Clone()
	require.NotNil(t, clone)

	*clone.Temperature = 0.1
	clone.StopSequences[0] = "MUTATED"
	clone.Metadata["k"] = "mutated"
	clone.ResponseSchema["nested"].(map[string]any)["a"] = 2

	assert.Equal(t, 0.7, temp, "cloning must not alias the original Temperature pointer")
	assert.Equal(t, "STOP", cfg.StopSequences[0])
	assert.Equal(t, "v", cfg.Metadata["k"])
	assert.Equal(t, 1, cfg.ResponseSchema["nested"].(map[string]any)["a"])
}

func TestGenerateConfig_CloneNilIsNil(t *testing.T) {
	var cfg *GenerateConfig
	assert.Nil(t, cfg.Clone())
}

func TestResponse_TextContentConcatenatesParts(t *testing.T) {
	resp := &Response{Content: &Content{Parts: []Part{TextPart("a"), TextPart("b")}}}
	assert.Equal(t, "ab", resp.TextContent())
}

func TestResponse_HasToolCalls(t *testing.T) {
	assert.False(t, (&Response{}).HasToolCalls())
	assert.True(t, (&Response{ToolCalls: []ToolCall{{Name: "x"}}}).HasToolCalls())
}

func TestResponse_ToMessageRoundTrips(t *testing.T) {
	resp := &Response{Content: &Content{Parts: []Part{TextPart("hi")}, Role: RoleAssistant}}
	msg := resp.ToMessage()
	require.NotNil(t, msg)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, "hi", msg.Parts[0].Text)
}
