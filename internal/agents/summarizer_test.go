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

package agents

import (
	"context"
	"iter"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/knowledge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
)

// scriptedLLM returns a fixed response per call and counts how many times
// GenerateContent actually runs, so tests can assert the cache is hit.
type scriptedLLM struct {
	calls int32
	text  string
}

func (m *scriptedLLM) Name() string           { return "scripted" }
func (m *scriptedLLM) Provider() llm.Provider { return llm.ProviderUnknown }
func (m *scriptedLLM) Close() error           { return nil }

func (m *scriptedLLM) GenerateContent(ctx context.Context, req *llm.Request, stream bool) iter.Seq2[*llm.Response, error] {
	return func(yield func(*llm.Response, error) bool) {
		atomic.AddInt32(&m.calls, 1)
		yield(&llm.Response{Content: &llm.Content{Parts: []llm.Part{llm.TextPart(m.text)}}}, nil)
	}
}

func openTestStore(t *testing.T) *knowledge.Store {
	t.Helper()
	store, err := knowledge.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSummarizer_CacheMissCallsModelThenCaches(t *testing.T) {
	store := openTestStore(t)
	model := &scriptedLLM{text: "a tidy summary"}
	summarizer := NewSummarizer(store, model)

	ctx := context.Background()
	summary, err := summarizer.Summarize(ctx, "summarize this", "some turn events")
	require.NoError(t, err)
	assert.Equal(t, "a tidy summary", summary)
	assert.EqualValues(t, 1, model.calls)

	again, err := summarizer.Summarize(ctx, "summarize this", "some turn events")
	require.NoError(t, err)
	assert.Equal(t, "a tidy summary", again)
	assert.EqualValues(t, 1, model.calls, "second call with identical (instruction, text) should be served from cache")
}

func TestSummarizer_DifferentInputsDoNotShareCache(t *testing.T) {
	store := openTestStore(t)
	model := &scriptedLLM{text: "summary"}
	summarizer := NewSummarizer(store, model)

	ctx := context.Background()
	_, err := summarizer.Summarize(ctx, "instruction A", "text")
	require.NoError(t, err)
	_, err = summarizer.Summarize(ctx, "instruction B", "text")
	require.NoError(t, err)

	assert.EqualValues(t, 2, model.calls)
}
