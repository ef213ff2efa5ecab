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

// Package config loads the core's process configuration from three layers,
// later layers overriding earlier ones: built-in defaults, an optional YAML
// file, then environment variables (the documented surface, §6). Only the
// file and env layers are optional at runtime; defaults always apply.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the process-wide runtime configuration assembled at startup.
type Config struct {
	LogLevel string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	Language string `koanf:"language"`

	BridgeBaseURL string        `koanf:"bridge_base_url"`
	BridgeReadTimeout  time.Duration `koanf:"-"`
	BridgeWriteTimeout time.Duration `koanf:"-"`

	TelemetryRoot string `koanf:"telemetry_root"`

	RulesDBPath string `koanf:"rules_db_path"`
	LocalizationDBPath string `koanf:"localization_db_path"`
	KnowledgeDBPath    string `koanf:"knowledge_db_path"`

	StrategyDocsDir string `koanf:"strategy_docs_dir"`

	HTTPPort int `koanf:"http_port"`

	TelemetryEnabled bool   `koanf:"telemetry_enabled"`
	ContextRoot      string `koanf:"context_root"`

	LLMProvider      string `koanf:"llm_provider"`
	GeminiAPIKey     string `koanf:"-"`
	GeminiModel      string `koanf:"gemini_model"`
	OpenAIAPIKey     string `koanf:"-"`
	OpenAIModel      string `koanf:"openai_model"`
	OpenAIBaseURL    string `koanf:"openai_base_url"`

	// DeliberativeModel names the (usually larger) model the
	// "deliberative" tier resolves to, used by the deliberative
	// strategist; other agents, briefers included, use the provider's
	// default model.
	DeliberativeModel string `koanf:"deliberative_model"`
}

// Defaults mirror §6's documented environment defaults.
func Defaults() map[string]any {
	return map[string]any{
		"log_level":            "info",
		"log_format":           "",
		"language":             "en_US",
		"bridge_base_url":      "http://localhost:8080",
		"telemetry_root":       "./telemetry",
		"rules_db_path":        "./data/rules.sqlite",
		"localization_db_path": "./data/localization.sqlite",
		"knowledge_db_path":    "./data/knowledge.sqlite",
		"strategy_docs_dir":    "./docs/strategies",
		"http_port":            8090,
		"telemetry_enabled":    false,
		"context_root":         "default",
		"llm_provider":         "gemini",
		"gemini_model":         "",
		"openai_model":         "",
		"openai_base_url":      "",
		"deliberative_model":   "",
	}
}

// envMapping maps koanf keys to the environment variable names named in §6.
var envMapping = map[string]string{
	"log_level":            "LOG_LEVEL",
	"log_format":           "LOG_FORMAT",
	"language":             "VOX_LANGUAGE",
	"bridge_base_url":      "VOX_BRIDGE_URL",
	"telemetry_root":       "VOX_TELEMETRY_ROOT",
	"rules_db_path":        "VOX_RULES_DB",
	"localization_db_path": "VOX_LOCALIZATION_DB",
	"knowledge_db_path":    "VOX_KNOWLEDGE_DB",
	"strategy_docs_dir":    "VOX_STRATEGY_DOCS",
	"http_port":            "VOX_HTTP_PORT",
	"telemetry_enabled":    "VOX_TELEMETRY_ENABLED",
	"context_root":         "VOX_CONTEXT_ROOT",
	"llm_provider":         "VOX_LLM_PROVIDER",
	"gemini_model":         "VOX_GEMINI_MODEL",
	"openai_model":         "VOX_OPENAI_MODEL",
	"openai_base_url":      "VOX_OPENAI_BASE_URL",
	"deliberative_model":   "VOX_DELIBERATIVE_MODEL",
}

// Load assembles configuration in three layers, each overriding the last:
// built-in defaults, an optional YAML file named by VOX_CONFIG_FILE, then
// environment variables. The file layer is entirely optional - most
// deployments only ever set env vars per §6 - but lets an operator pin a
// whole configuration (e.g. for a saved game's fixed bridge URL and
// telemetry root) in one place instead of a shell's worth of exports.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, err
	}

	if path := os.Getenv("VOX_CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	reverse := make(map[string]string, len(envMapping))
	for key, envVar := range envMapping {
		reverse[envVar] = key
	}

	if err := k.Load(env.ProviderWithValue("", ".", func(rawEnvVar, value string) (string, any) {
		key, ok := reverse[rawEnvVar]
		if !ok {
			return "", nil
		}
		return key, value
	}), nil); err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:           k.String("log_level"),
		LogFormat:          k.String("log_format"),
		Language:           k.String("language"),
		BridgeBaseURL:      k.String("bridge_base_url"),
		TelemetryRoot:      k.String("telemetry_root"),
		RulesDBPath:        k.String("rules_db_path"),
		LocalizationDBPath: k.String("localization_db_path"),
		KnowledgeDBPath:    k.String("knowledge_db_path"),
		StrategyDocsDir:    k.String("strategy_docs_dir"),
		HTTPPort:           k.Int("http_port"),
		BridgeReadTimeout:  5 * time.Second,
		BridgeWriteTimeout: 30 * time.Second,

		TelemetryEnabled:  k.Bool("telemetry_enabled"),
		ContextRoot:       k.String("context_root"),
		LLMProvider:       k.String("llm_provider"),
		GeminiAPIKey:      os.Getenv("VOX_GEMINI_API_KEY"),
		GeminiModel:       k.String("gemini_model"),
		OpenAIAPIKey:      os.Getenv("VOX_OPENAI_API_KEY"),
		OpenAIModel:       k.String("openai_model"),
		OpenAIBaseURL:     k.String("openai_base_url"),
		DeliberativeModel: k.String("deliberative_model"),
	}

	if raw := os.Getenv("VOX_HTTP_PORT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.HTTPPort = n
		}
	}
	if raw := os.Getenv("VOX_TELEMETRY_ENABLED"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			cfg.TelemetryEnabled = b
		}
	}

	return cfg, nil
}

// LogAttrs returns the config rendered as slog attrs for a single startup
// log line, never logging secrets: the two API key fields are left out
// (the trust boundary is local host per §1).
func (c *Config) LogAttrs() []any {
	return []any{
		"log_level", c.LogLevel,
		"language", c.Language,
		"bridge_base_url", c.BridgeBaseURL,
		"telemetry_root", c.TelemetryRoot,
		"http_port", c.HTTPPort,
		"telemetry_enabled", c.TelemetryEnabled,
		"context_root", c.ContextRoot,
		"llm_provider", c.LLMProvider,
	}
}

// MustLoad is a convenience wrapper for CLI entrypoints that treat a load
// failure as a fatal initialization error (exit code 1 per §6).
func MustLoad(logger *slog.Logger) *Config {
	cfg, err := Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}
