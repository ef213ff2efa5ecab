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

// Package remotefunc implements the L4 remote-function registry: named
// scripts registered on first use, invalidated on bridge reconnect, and
// invoked through bridge.Client.Call, one HTTP request per invocation;
// calls are not batched.
//
// The map-of-records shape is grounded on pkg/registry/registry.go's
// generic name->item registry, specialized here for the per-name state
// machine and install/retry semantics §4.L4 requires (a plain
// BaseRegistry[T] has no notion of state transitions).
package remotefunc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/bridge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// State is a remote-function record's registration state machine.
type State int

const (
	Unknown State = iota
	Registering
	Registered
	Failed
)

// Record is one remote-function: a stable name, its positional argument
// names, its script body, and its current registration state.
type Record struct {
	Name      string
	Args      []string
	Script    string
	mu        sync.Mutex
	state     State
}

func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Registry owns every remote-function Record, keyed by name. Each record
// has its own mutex so install/invoke races on different functions don't
// serialize on a single global lock (§5's per-name state lock).
type Registry struct {
	client *bridge.Client

	mu      sync.RWMutex
	records map[string]*Record
}

// New creates a registry bound to client.
func New(client *bridge.Client) *Registry {
	return &Registry{client: client, records: make(map[string]*Record)}
}

// Define registers a function's name/args/script with the registry without
// contacting the bridge; installation happens lazily on first Invoke.
// Re-defining the same name with a different script body is rejected per
// §4.L4's invariant — reuse requires a new name.
func (r *Registry) Define(name string, args []string, script string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[name]; ok {
		if existing.Script != script {
			return voxerr.New(voxerr.InvalidArgument, "remotefunc.redefine_conflict",
				fmt.Sprintf("function %q is already registered with a different script body", name))
		}
		return nil
	}

	r.records[name] = &Record{Name: name, Args: args, Script: script, state: Unknown}
	return nil
}

func (r *Registry) get(name string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

// List returns every defined function record, for diagnostics.
func (r *Registry) List() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// ResetAll transitions every record back to Unknown, called when the
// bridge client observes an SSE reconnect (§4.L3's "connected" signal).
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		rec.mu.Lock()
		rec.state = Unknown
		rec.mu.Unlock()
	}
}

// Invoke runs the named function's install-then-call path described in
// §4.L4:
//  1. If not registered, install it; on success mark registered.
//  2. Marshal args by declared ordering and call the bridge.
//  3. On "unknown function", reset to unknown, retry install once, retry
//     call once.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (*bridge.Result, error) {
	rec, ok := r.get(name)
	if !ok {
		return nil, voxerr.New(voxerr.NotFound, "remotefunc.unknown", fmt.Sprintf("remote function %q is not defined", name))
	}

	if err := r.ensureRegistered(ctx, rec); err != nil {
		return nil, err
	}

	result, err := r.callOrdered(ctx, rec, args)
	if err == nil {
		return result, nil
	}

	if voxerr.KindOf(err) == voxerr.BridgeError && isUnknownFunction(err) {
		rec.mu.Lock()
		rec.state = Unknown
		rec.mu.Unlock()

		if err := r.ensureRegistered(ctx, rec); err != nil {
			return nil, err
		}
		return r.callOrdered(ctx, rec, args)
	}

	return nil, err
}

func isUnknownFunction(err error) bool {
	var e *voxerr.Error
	if errors.As(err, &e) {
		return e.Code == bridge.CodeUnknownFunction
	}
	return false
}

func (r *Registry) ensureRegistered(ctx context.Context, rec *Record) error {
	rec.mu.Lock()
	if rec.state == Registered {
		rec.mu.Unlock()
		return nil
	}
	rec.state = Registering
	rec.mu.Unlock()

	_, err := r.client.Execute(ctx, rec.Script)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err != nil {
		rec.state = Failed
		return voxerr.Wrap(voxerr.BridgeError, "remotefunc.install_failed", fmt.Sprintf("failed to register function %q", rec.Name), err)
	}
	rec.state = Registered
	return nil
}

func (r *Registry) callOrdered(ctx context.Context, rec *Record, args map[string]any) (*bridge.Result, error) {
	ordered := make([]any, len(rec.Args))
	for i, argName := range rec.Args {
		ordered[i] = args[argName]
	}
	return r.client.Call(ctx, rec.Name, ordered)
}
