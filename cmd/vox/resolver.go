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

package main

import (
	"context"
	"fmt"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/config"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/llm"
)

// modelTierDefault is every agent's tier unless it overrides ModelTier to
// something else. modelTierDeliberative backs NewDeliberativeStrategist,
// which is expected to reason over a larger context at higher cost.
const (
	modelTierDefault      = "default"
	modelTierDeliberative = "deliberative"
)

// newModelResolver builds an agentruntime.ModelResolver that constructs one
// LLM client per tier the first time it's requested and reuses it after,
// resolving named model configs lazily rather than eagerly connecting to
// every provider at startup.
func newModelResolver(cfg *config.Config) (func(tier string) (llm.LLM, error), error) {
	cache := map[string]llm.LLM{}

	build := func(model string) (llm.LLM, error) {
		switch cfg.LLMProvider {
		case "openai":
			return llm.NewOpenAI(llm.OpenAIConfig{
				APIKey:  cfg.OpenAIAPIKey,
				Model:   model,
				BaseURL: cfg.OpenAIBaseURL,
			})
		case "gemini", "":
			return llm.NewGemini(context.Background(), llm.GeminiConfig{
				APIKey: cfg.GeminiAPIKey,
				Model:  model,
			})
		default:
			return nil, fmt.Errorf("resolver: unknown llm_provider %q", cfg.LLMProvider)
		}
	}

	return func(tier string) (llm.LLM, error) {
		if cached, ok := cache[tier]; ok {
			return cached, nil
		}

		model := cfg.GeminiModel
		if cfg.LLMProvider == "openai" {
			model = cfg.OpenAIModel
		}
		if tier == modelTierDeliberative && cfg.DeliberativeModel != "" {
			model = cfg.DeliberativeModel
		}

		built, err := build(model)
		if err != nil {
			return nil, fmt.Errorf("resolver: tier %q: %w", tier, err)
		}
		cache[tier] = built
		return built, nil
	}, nil
}
