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

package strategy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixtures(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		grandStrategyFile: `{"Conquest":"Win through war.","Culture":"Win through culture."}`,
		flavorsFile:       `{"Military":"Favor military output.","Growth":"Favor population growth."}`,
		militaryFile:      `[{"name":"Rush","description":"Early aggression","flavor":"Military"}]`,
		economicFile:      `[{"name":"TradeFocus","description":"Prioritize trade routes","flavor":"Growth"}]`,
		eventCategoryFile: `{"military":["UnitKilled","CityCaptured"],"diplomacy":["WarDeclared"]}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestManager_CatalogLoadsAllFiveFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)

	m := NewManager(dir, time.Hour, nil)
	catalog, err := m.Catalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Win through war.", catalog.GrandStrategies["Conquest"])
	assert.Equal(t, "Favor military output.", catalog.Flavors["Military"])
	require.Len(t, catalog.Military, 1)
	assert.Equal(t, "Rush", catalog.Military[0].Name)
	assert.Equal(t, "Military", catalog.Military[0].Flavor)
	require.Len(t, catalog.Economic, 1)
	assert.Equal(t, "TradeFocus", catalog.Economic[0].Name)
	assert.ElementsMatch(t, []string{"UnitKilled", "CityCaptured"}, catalog.EventTypes("military"))
}

func TestManager_CatalogCachesWithinTTL(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)

	m := NewManager(dir, time.Hour, nil)
	first, err := m.Catalog(context.Background())
	require.NoError(t, err)

	// Remove the files; a cache hit must not need them.
	require.NoError(t, os.RemoveAll(dir))

	second, err := m.Catalog(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestManager_CatalogReloadsAfterTTLExpires(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)

	m := NewManager(dir, time.Millisecond, nil)
	first, err := m.Catalog(context.Background())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, grandStrategyFile), []byte(`{"Conquest":"Updated."}`), 0o644))

	second, err := m.Catalog(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, "Updated.", second.GrandStrategies["Conquest"])
}

func TestManager_CatalogFallsBackToStaleOnReloadFailure(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)

	m := NewManager(dir, time.Millisecond, nil)
	first, err := m.Catalog(context.Background())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, os.Remove(filepath.Join(dir, grandStrategyFile)))

	second, err := m.Catalog(context.Background())
	require.NoError(t, err, "a reload failure must fall back to the stale catalog, not error")
	assert.Same(t, first, second)
}

func TestCatalog_ValidateRejectsUnknownNames(t *testing.T) {
	catalog := &Catalog{
		GrandStrategies: map[string]string{"Conquest": "x"},
		Flavors:         map[string]string{"Military": "x"},
		Military:        []Stratagem{{Name: "Rush"}},
		Economic:        []Stratagem{{Name: "TradeFocus"}},
	}

	assert.NoError(t, catalog.ValidateGrandStrategy("Conquest"))
	assert.Error(t, catalog.ValidateGrandStrategy("NotReal"))

	assert.NoError(t, catalog.ValidateFlavor("Military"))
	assert.Error(t, catalog.ValidateFlavor("NotReal"))

	assert.NoError(t, catalog.ValidateStratagem("military", "Rush"))
	assert.Error(t, catalog.ValidateStratagem("military", "NotReal"))
	assert.NoError(t, catalog.ValidateStratagem("economic", "TradeFocus"))
	assert.Error(t, catalog.ValidateStratagem("naval", "Rush"), "unknown stratagem kind must error")
}

func TestManager_WatchInvalidatesCacheOnFileChange(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)

	m := NewManager(dir, time.Hour, nil)
	first, err := m.Catalog(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx))
	defer m.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, grandStrategyFile), []byte(`{"Conquest":"Changed by watch."}`), 0o644))

	require.Eventually(t, func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.loadedAt.IsZero()
	}, time.Second, 10*time.Millisecond, "file change must invalidate the cached catalog")

	second, err := m.Catalog(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, "Changed by watch.", second.GrandStrategies["Conquest"])
}
