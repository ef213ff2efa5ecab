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
	"crypto/sha256"
	"encoding/hex"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/knowledge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

const summarizerSystemPrompt = "Summarize the given text per the instruction. Respond with the summary only, no preamble."

// Summarizer is a stateless leaf utility (Briefer does not call it): given
// {text, instruction} it returns one summary, cached under a SHA-256 hash
// of (instruction, text) so asking for the same briefing twice in a turn
// costs nothing (§4.A2 "Summarizer utility").
type Summarizer struct {
	store *knowledge.Store
	model llm.LLM
}

// NewSummarizer returns a Summarizer backed by store's cache table and
// calling model for cache misses.
func NewSummarizer(store *knowledge.Store, model llm.LLM) *Summarizer {
	return &Summarizer{store: store, model: model}
}

// Summarize returns a summary of text per instruction, serving from cache
// when (instruction, text) has been summarized before.
func (s *Summarizer) Summarize(ctx context.Context, instruction, text string) (string, error) {
	hash := summaryHash(instruction, text)

	if cached, ok, err := s.store.GetSummary(ctx, hash); err != nil {
		return "", err
	} else if ok {
		return cached, nil
	}

	req := &llm.Request{
		SystemInstruction: summarizerSystemPrompt,
		Messages: []*llm.Message{
			{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(instruction + "\n\n" + text)}},
		},
	}

	var resp *llm.Response
	for r, err := range s.model.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", voxerr.Wrap(voxerr.DependencyFailed, "agents.summarize_failed", "summarizer model call failed", err)
		}
		resp = r
	}
	if resp == nil {
		return "", voxerr.New(voxerr.Internal, "agents.summarize_empty", "summarizer model returned no response")
	}

	summary := resp.TextContent()
	if err := s.store.PutSummary(ctx, hash, summary); err != nil {
		return "", err
	}
	return summary, nil
}

func summaryHash(instruction, text string) string {
	sum := sha256.Sum256([]byte(instruction + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
