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

// Package strategy implements the P3 strategy/flavor manager: it loads and
// caches the authored grand-strategy, flavor, and stratagem catalogs from
// JSON files, reloads them on a TTL or on a file-system change, and
// validates tool arguments against the loaded catalog.
//
// Grounded on pkg/config/provider/file.go's watch-and-reload idiom
// (fsnotify on the containing directory, debounced) and pkg/config/loader.go's
// two-phase decode (generic JSON, then a typed mapstructure pass).
package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

const (
	grandStrategyFile  = "grand-strategy.json"
	flavorsFile        = "flavors.json"
	militaryFile       = "military.json"
	economicFile       = "economic.json"
	eventCategoryFile  = "event-categories.json"
	defaultTTL         = 5 * time.Minute
	watchDebounceDelay = 100 * time.Millisecond
)

// Stratagem is one named military or economic stratagem entry.
type Stratagem struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Flavor      string `mapstructure:"flavor"`
}

// Catalog is the fully loaded, immutable set of authored strategy
// descriptions for one TTL/reload cycle.
type Catalog struct {
	GrandStrategies map[string]string
	Flavors         map[string]string
	Military        []Stratagem
	Economic        []Stratagem
	EventCategories map[string][]string
}

// ValidateGrandStrategy reports an error if name isn't an authored grand
// strategy.
func (c *Catalog) ValidateGrandStrategy(name string) error {
	if _, ok := c.GrandStrategies[name]; !ok {
		return voxerr.New(voxerr.InvalidArgument, "strategy.unknown_grand_strategy", fmt.Sprintf("unknown grand strategy %q", name))
	}
	return nil
}

// ValidateFlavor reports an error if name isn't an authored flavor.
func (c *Catalog) ValidateFlavor(name string) error {
	if _, ok := c.Flavors[name]; !ok {
		return voxerr.New(voxerr.InvalidArgument, "strategy.unknown_flavor", fmt.Sprintf("unknown flavor %q", name))
	}
	return nil
}

// ValidateStratagem reports an error if name isn't an authored stratagem of
// the given kind ("military" or "economic").
func (c *Catalog) ValidateStratagem(kind, name string) error {
	var list []Stratagem
	switch kind {
	case "military":
		list = c.Military
	case "economic":
		list = c.Economic
	default:
		return voxerr.New(voxerr.InvalidArgument, "strategy.unknown_stratagem_kind", fmt.Sprintf("unknown stratagem kind %q", kind))
	}
	for _, s := range list {
		if s.Name == name {
			return nil
		}
	}
	return voxerr.New(voxerr.InvalidArgument, "strategy.unknown_stratagem", fmt.Sprintf("unknown %s stratagem %q", kind, name))
}

// EventTypes returns the event type names filed under category, per the
// authored event-categories.json. The briefers' EventCategoryFilter is built
// by agents.CategoryFilter from the EventCategories map directly (see
// cmd/vox/agents.go), not through this method.
func (c *Catalog) EventTypes(category string) []string {
	return c.EventCategories[category]
}

// Manager loads Catalog on demand, caches it for ttl, and invalidates the
// cache early on a file-system change to any of the five authored files.
type Manager struct {
	dir    string
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.RWMutex
	catalog  *Catalog
	loadedAt time.Time
	watcher  *fsnotify.Watcher
}

// NewManager returns a Manager reading the five authored JSON files from
// dir. ttl <= 0 uses the ~5 minute default from §4.P3.
func NewManager(dir string, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, ttl: ttl, logger: logger}
}

// Catalog returns the cached catalog if it's within its TTL, reloading from
// disk otherwise. A reload failure falls back to serving a stale catalog
// (if one is cached) rather than failing a tool call outright.
func (m *Manager) Catalog(ctx context.Context) (*Catalog, error) {
	m.mu.RLock()
	cached, loadedAt := m.catalog, m.loadedAt
	m.mu.RUnlock()

	if cached != nil && time.Since(loadedAt) < m.ttl {
		return cached, nil
	}

	loaded, err := loadCatalog(m.dir)
	if err != nil {
		if cached != nil {
			m.logger.Warn("strategy: reload failed, serving stale catalog", "error", err)
			return cached, nil
		}
		return nil, err
	}

	m.mu.Lock()
	m.catalog = loaded
	m.loadedAt = time.Now()
	m.mu.Unlock()

	return loaded, nil
}

// Watch starts an fsnotify watch on dir; a write/create to any of the five
// authored files invalidates the cache early, so the next Catalog call
// reloads instead of waiting out the TTL. Watch returns once the watcher is
// established; the watch loop runs until ctx is cancelled or Close is
// called.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "strategy.new_watcher", "failed to create file watcher", err)
	}
	if err := watcher.Add(m.dir); err != nil {
		watcher.Close()
		return voxerr.Wrap(voxerr.Internal, "strategy.watch_dir", fmt.Sprintf("failed to watch %s", m.dir), err)
	}

	m.mu.Lock()
	m.watcher = watcher
	m.mu.Unlock()

	go m.watchLoop(ctx, watcher)
	m.logger.Info("strategy: watching catalog directory", "dir", m.dir)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isCatalogFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounceDelay, m.invalidate)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("strategy: file watcher error", "error", err)
		}
	}
}

func (m *Manager) invalidate() {
	m.mu.Lock()
	m.loadedAt = time.Time{}
	m.mu.Unlock()
	m.logger.Info("strategy: catalog invalidated by file change")
}

// Close stops the file watcher, if one was started.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher == nil {
		return nil
	}
	err := m.watcher.Close()
	m.watcher = nil
	return err
}

func isCatalogFile(path string) bool {
	switch filepath.Base(path) {
	case grandStrategyFile, flavorsFile, militaryFile, economicFile, eventCategoryFile:
		return true
	default:
		return false
	}
}

func loadCatalog(dir string) (*Catalog, error) {
	grand, err := loadStringMap(filepath.Join(dir, grandStrategyFile))
	if err != nil {
		return nil, err
	}
	flavors, err := loadStringMap(filepath.Join(dir, flavorsFile))
	if err != nil {
		return nil, err
	}
	military, err := loadStratagems(filepath.Join(dir, militaryFile))
	if err != nil {
		return nil, err
	}
	economic, err := loadStratagems(filepath.Join(dir, economicFile))
	if err != nil {
		return nil, err
	}
	eventCategories, err := loadEventCategories(filepath.Join(dir, eventCategoryFile))
	if err != nil {
		return nil, err
	}

	return &Catalog{
		GrandStrategies: grand,
		Flavors:         flavors,
		Military:        military,
		Economic:        economic,
		EventCategories: eventCategories,
	}, nil
}

func loadStringMap(path string) (map[string]string, error) {
	var result map[string]string
	if err := readJSON(path, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func loadEventCategories(path string) (map[string][]string, error) {
	var result map[string][]string
	if err := readJSON(path, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// loadStratagems parses path generically, then decodes into []Stratagem via
// mapstructure, mirroring pkg/config/loader.go's parse-generic-then-decode-typed
// shape.
func loadStratagems(path string) ([]Stratagem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "strategy.read_file", fmt.Sprintf("failed to read %s", path), err)
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "strategy.decode_file", fmt.Sprintf("failed to decode %s", path), err)
	}

	var stratagems []Stratagem
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &stratagems,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "strategy.new_decoder", "failed to build stratagem decoder", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "strategy.decode_stratagems", fmt.Sprintf("failed to decode stratagems in %s", path), err)
	}
	return stratagems, nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "strategy.read_file", fmt.Sprintf("failed to read %s", path), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return voxerr.Wrap(voxerr.Internal, "strategy.decode_file", fmt.Sprintf("failed to decode %s", path), err)
	}
	return nil
}
