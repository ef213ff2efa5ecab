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

package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Catalog is the process-wide registry of every Tool, addressable by name.
// Registration happens once at startup (mirroring pkg/registry/registry.go's
// BaseRegistry[T] shape); List's summaries are computed once and cached for
// the process lifetime per §4.C1.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]Tool

	summaryOnce sync.Once
	summaries   []Summary
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]Tool)}
}

// Register adds t to the catalog. Registering two tools under the same name
// is a programming error and panics, matching the teacher's registry's
// fail-fast stance on duplicate registration.
func (c *Catalog) Register(t Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tools[t.Name()]; exists {
		panic(fmt.Sprintf("tool %q already registered", t.Name()))
	}
	c.tools[t.Name()] = t
}

// Get returns the tool named name, or an error if none exists.
func (c *Catalog) Get(name string) (Tool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	if !ok {
		return nil, notFoundf("tool", "tool %q is not registered", name)
	}
	return t, nil
}

// List returns every tool's Summary, sorted by name for deterministic
// output (§8's determinism invariant), computed once and cached thereafter.
func (c *Catalog) List() []Summary {
	c.summaryOnce.Do(func() {
		c.mu.RLock()
		defer c.mu.RUnlock()
		c.summaries = make([]Summary, 0, len(c.tools))
		for _, t := range c.tools {
			c.summaries = append(c.summaries, summarize(t))
		}
		sort.Slice(c.summaries, func(i, j int) bool { return c.summaries[i].Name < c.summaries[j].Name })
	})
	return c.summaries
}

// Call validates args against the named tool's input schema and executes
// it. The RPC server and the pipeline's keep-status-quo fallback dispatch
// through here; the agent runtime resolves tools from its own per-agent
// tool map and applies the same input-schema check before Execute.
func (c *Catalog) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, err := c.Get(name)
	if err != nil {
		return nil, err
	}

	if _, err := validateArgs(t, args); err != nil {
		return nil, err
	}

	return t.Execute(ctx, args)
}
