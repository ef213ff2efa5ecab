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
	"log/slog"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agentruntime"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/bridge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/config"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/gamedb"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/knowledge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/observer"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/pipeline"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/refresh"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/remotefunc"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/rpcserver"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/strategy"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/telemetry"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/tool"
)

// App wires every internal/* component into the dependency graph one
// process needs, built through sequential construction and deferred Close
// rather than a DI framework. Subcommands that don't need the full turn pipeline
// (export-schemas, telepathist) build a smaller subset directly rather than
// going through New.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Telemetry *telemetry.Manager
	Gateway   *gamedb.Gateway
	Store     *knowledge.Store
	Bridge    *bridge.Client
	Registry  *remotefunc.Registry
	Catalog   *tool.Catalog
	Strategy  *strategy.Manager
	Runtime   *agentruntime.Runtime
	Refresher *refresh.Refresher
	Observer  *observer.Publisher
	Pipeline  *pipeline.Pipeline
	RPC       *rpcserver.Server
}

// NewApp assembles the full dependency graph described by SPEC_FULL's
// component table. Each step owns its own failure message so a fatal
// initialization error (§6, exit code 1) points at the component that
// failed.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	telemetryMgr, err := telemetry.NewManager(context.Background(), telemetry.Config{
		Enabled:     cfg.TelemetryEnabled,
		Root:        cfg.TelemetryRoot,
		ContextRoot: cfg.ContextRoot,
		ServiceName: "vox-deorum-core",
	}, logger)
	if err != nil {
		return nil, err
	}
	app.Telemetry = telemetryMgr

	gateway, err := gamedb.Open(cfg.RulesDBPath, cfg.LocalizationDBPath, cfg.Language)
	if err != nil {
		return nil, err
	}
	app.Gateway = gateway

	store, err := knowledge.Open(cfg.KnowledgeDBPath)
	if err != nil {
		return nil, err
	}
	app.Store = store

	app.Bridge = bridge.New(cfg.BridgeBaseURL)
	app.Registry = remotefunc.New(app.Bridge)

	app.Catalog = tool.NewCatalog()
	if err := registerTools(app); err != nil {
		return nil, err
	}

	resolve, err := newModelResolver(cfg)
	if err != nil {
		return nil, err
	}
	app.Strategy = strategy.NewManager(cfg.StrategyDocsDir, 0, logger)

	app.Runtime = agentruntime.NewRuntime(app.Catalog, resolve)
	registerAgents(app)

	app.Refresher = refresh.New(app.Bridge, app.Gateway, app.Store, logger)
	app.Observer = observer.New(app.Bridge, logger)

	app.Pipeline = pipeline.New(app.Runtime, app.Catalog, app.Bridge, app.Refresher, playerGraphSelector, app.Observer, logger)

	app.RPC = rpcserver.New(app.Catalog, logger, nil)

	return app, nil
}

// StartBackground starts every goroutine a serving subcommand needs
// running for the lifetime of ctx: the bridge's SSE consumption loop (§4.L3
// - nothing else pumps it), a subscriber that resets the remote-function
// registry on a bridge reconnect (§4.L3's "connected" signal), the strategy
// catalog's file watch (§4.P3), and the turn pipeline itself.
func (a *App) StartBackground(ctx context.Context) error {
	go a.Bridge.Run(ctx)
	go a.watchReconnect(ctx)

	if err := a.Strategy.Watch(ctx); err != nil {
		a.Logger.Warn("strategy: file watch unavailable, relying on TTL only", "error", err)
	}

	go a.Pipeline.Run(ctx)
	return nil
}

// watchReconnect subscribes to the bridge's event broadcaster and resets
// every remote-function record to unknown whenever a reconnect's synthetic
// "connected" signal arrives, so the next invoke re-installs each script
// rather than trusting a registration the bridge may have forgotten.
func (a *App) watchReconnect(ctx context.Context) {
	events, unsubscribe := a.Bridge.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == bridge.ConnectedEventType {
				a.Logger.Info("bridge: reconnected, resetting remote function registrations")
				a.Registry.ResetAll()
			}
		}
	}
}

// Close releases every component that owns an OS resource, in reverse
// dependency order.
func (a *App) Close() {
	if a.Strategy != nil {
		_ = a.Strategy.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
	if a.Gateway != nil {
		_ = a.Gateway.Close()
	}
	if a.Telemetry != nil {
		_ = a.Telemetry.Shutdown(context.Background())
	}
}
