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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/config"
)

func TestNewModelResolver_UnknownProviderReturnsError(t *testing.T) {
	resolve, err := newModelResolver(&config.Config{LLMProvider: "bogus-provider"})
	require.NoError(t, err)

	_, err = resolve(modelTierDefault)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown llm_provider")
}

func TestNewModelResolver_MissingAPIKeyFailsBeforeAnyNetworkCall(t *testing.T) {
	resolve, err := newModelResolver(&config.Config{LLMProvider: "gemini"})
	require.NoError(t, err)

	_, err = resolve(modelTierDefault)
	require.Error(t, err)
	require.Contains(t, err.Error(), "gemini API key is required")
}

func TestNewModelResolver_OpenAIMissingAPIKeyFailsBeforeAnyNetworkCall(t *testing.T) {
	resolve, err := newModelResolver(&config.Config{LLMProvider: "openai"})
	require.NoError(t, err)

	_, err = resolve(modelTierDefault)
	require.Error(t, err)
	require.Contains(t, err.Error(), "openai API key is required")
}
