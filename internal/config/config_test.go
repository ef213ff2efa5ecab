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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "en_US", cfg.Language)
	require.Equal(t, "http://localhost:8080", cfg.BridgeBaseURL)
	require.Equal(t, 8090, cfg.HTTPPort)
	require.Equal(t, "gemini", cfg.LLMProvider)
}

func TestLoad_ConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge_base_url: http://bridge.internal:9000\nhttp_port: 9191\n"), 0o644))

	t.Setenv("VOX_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://bridge.internal:9000", cfg.BridgeBaseURL)
	require.Equal(t, 9191, cfg.HTTPPort)
}

func TestLoad_EnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge_base_url: http://bridge.internal:9000\n"), 0o644))

	t.Setenv("VOX_CONFIG_FILE", path)
	t.Setenv("VOX_BRIDGE_URL", "http://bridge.override:7000")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://bridge.override:7000", cfg.BridgeBaseURL)
}

func TestLoad_MissingConfigFileFails(t *testing.T) {
	t.Setenv("VOX_CONFIG_FILE", filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_NoConfigFileEnvVarSkipsFileLayer(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)
}
