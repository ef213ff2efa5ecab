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

// Package pipeline implements the P1 turn pipeline: one FIFO per
// controlled player draining TurnStart notifications off the bridge's
// event stream, each notification refreshing knowledge (P2), dispatching
// the player's configured agent graph (A1), and falling back to
// keep-status-quo so the game is never left blocked.
//
// Grounded on pkg/agent/task_awaiter.go and pkg/agent/orchestration.go's
// cancellation-token idiom: a context.CancelFunc held per in-flight run,
// superseded (not queued alongside) by the next notification for the same
// player. Different players run on independent goroutines, matching §5's
// "per-player turn pipelines run in parallel" and "no single player has two
// turns in flight".
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agentruntime"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/bridge"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/tool"
)

// keepStatusQuoTool is the catalog entry every failed or cancelled run
// falls back to, per §4.P1 step 5.
const keepStatusQuoTool = "keep-status-quo"

// playerReadyFunction is the bridge script the pipeline calls to signal
// "player N ready" (§4.P1 step 6). The bridge-side name isn't pinned by the
// spec beyond its English description; this is the chosen remote-function
// name, registered the same way every other bridge-action tool is.
const playerReadyFunction = "playerReady"

// cancelGrace bounds how long onTurnStart waits for a superseded run to
// actually finish (§4.P1 "Cancellation": "waits briefly for graceful
// shutdown") before enqueuing the new notification regardless.
const cancelGrace = 3 * time.Second

// AgentGraphSelector resolves which registered agent to run for player
// (§4.P1 step 2, "by player configuration"). cmd/vox supplies the concrete
// mapping; the pipeline only needs the string it can hand to
// agentruntime.Runtime.CallAgent.
type AgentGraphSelector func(player int) string

// Refresher builds/refreshes the per-turn parameter record for player at
// turn (§4.P1 step 1 / §4.P2) and returns it as the agent's input map.
// internal/refresh's concrete type satisfies this structurally; pipeline
// depends on the interface, not the package, to keep the dependency
// direction P1 -> P2 instead of circular.
type Refresher interface {
	Refresh(ctx context.Context, player, turn int) (map[string]any, error)
}

// Observer publishes a decision or fallback as an observer event
// (internal/observer's concrete type satisfies this; a nil Observer is a
// valid, silent no-op).
type Observer interface {
	PublishDecision(ctx context.Context, player, turn int, agent string, result *agentruntime.Result)
	PublishFallback(ctx context.Context, player, turn int, cause error)
}

// turnNotification is one TurnStart event for a player, dequeued in order.
type turnNotification struct {
	turn int
}

// playerState is the per-player FIFO and the cancellation handle for
// whichever run currently owns it.
type playerState struct {
	mu       sync.Mutex
	lastTurn int
	cancel   context.CancelFunc
	done     chan struct{}
	queue    chan turnNotification
}

// Pipeline is the P1 turn pipeline.
type Pipeline struct {
	runtime   *agentruntime.Runtime
	catalog   *tool.Catalog
	bridge    *bridge.Client
	refresher Refresher
	selector  AgentGraphSelector
	observer  Observer
	logger    *slog.Logger
	tracer    trace.Tracer

	mu      sync.Mutex
	players map[int]*playerState
}

// New returns a Pipeline. observer may be nil.
func New(runtime *agentruntime.Runtime, catalog *tool.Catalog, bridgeClient *bridge.Client, refresher Refresher, selector AgentGraphSelector, observer Observer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		runtime:   runtime,
		catalog:   catalog,
		bridge:    bridgeClient,
		refresher: refresher,
		selector:  selector,
		observer:  observer,
		logger:    logger,
		tracer:    otel.Tracer("vox-deorum/pipeline"),
		players:   make(map[int]*playerState),
	}
}

// Run subscribes to the bridge's event stream and processes TurnStart
// notifications until ctx is cancelled. bridge.Client.Run must already be
// running (typically started once at process startup) for events to flow.
func (p *Pipeline) Run(ctx context.Context) {
	events, unsubscribe := p.bridge.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != "TurnStart" {
				continue
			}
			var payload struct {
				PlayerID int `json:"playerId"`
				Turn     int `json:"turn"`
			}
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				p.logger.Warn("pipeline: malformed TurnStart payload", "error", err)
				continue
			}
			p.onTurnStart(ctx, payload.PlayerID, payload.Turn)
		}
	}
}

// stateFor returns (creating if needed) the FIFO state for player.
func (p *Pipeline) stateFor(player int) *playerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.players[player]
	if !ok {
		st = &playerState{queue: make(chan turnNotification, 1)}
		p.players[player] = st
		go p.playerWorker(player, st)
	}
	return st
}

// onTurnStart handles one TurnStart notification: deduplicates stale
// repeats (the bridge's SSE stream has no event id to dedupe on, so turn
// monotonicity per player is used instead, §8 "Streams of events"),
// cancels any in-flight run for the same player, waits briefly for it to
// actually stop, and enqueues the new turn.
func (p *Pipeline) onTurnStart(ctx context.Context, player, turn int) {
	st := p.stateFor(player)

	st.mu.Lock()
	if turn <= st.lastTurn {
		st.mu.Unlock()
		return
	}
	st.lastTurn = turn
	cancel := st.cancel
	done := st.done
	st.mu.Unlock()

	if cancel != nil {
		cancel()
		if done != nil {
			select {
			case <-done:
			case <-time.After(cancelGrace):
				p.logger.Warn("pipeline: superseded run did not stop within grace period", "player", player, "turn", turn)
			}
		}
	}

	enqueueLatest(st.queue, turnNotification{turn: turn})
}

// enqueueLatest sends notif into ch, dropping an already-pending (and now
// obsolete, since it was about to be cancelled anyway) notification rather
// than blocking.
func enqueueLatest(ch chan turnNotification, notif turnNotification) {
	for {
		select {
		case ch <- notif:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// playerWorker drains player's FIFO one notification at a time, the
// serialization point that guarantees no single player has two turns in
// flight.
func (p *Pipeline) playerWorker(player int, st *playerState) {
	for notif := range st.queue {
		runCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		st.mu.Lock()
		st.cancel = cancel
		st.done = done
		st.mu.Unlock()

		p.runTurn(runCtx, player, notif.turn)

		close(done)
		cancel()

		st.mu.Lock()
		st.cancel = nil
		st.done = nil
		st.mu.Unlock()
	}
}

// runTurn is one full §4.P1 processing of a notification: refresh, select,
// call, report or fall back, signal ready.
func (p *Pipeline) runTurn(ctx context.Context, player, turn int) {
	ctx, span := p.tracer.Start(ctx, "pipeline.turn")
	defer span.End()
	span.SetAttributes(attribute.Int("pipeline.player", player), attribute.Int("pipeline.turn", turn))

	input, err := p.refresher.Refresh(ctx, player, turn)
	if err != nil {
		p.fallback(ctx, span, player, turn, err)
		return
	}

	agentName := p.selector(player)
	parameters := map[string]any{"player": player, "turn": turn}

	result, err := p.runtime.CallAgent(ctx, agentName, input, parameters, nil)
	if err != nil {
		p.fallback(ctx, span, player, turn, err)
		return
	}

	span.SetAttributes(attribute.String("pipeline.agent", agentName))
	span.SetStatus(codes.Ok, "")

	if p.observer != nil {
		p.observer.PublishDecision(ctx, player, turn, agentName, result)
	}
	p.signalReady(ctx, player, turn)
}

// fallback calls keep-status-quo so the game is never left blocked
// (§4.P1 step 5), using a context detached from ctx's cancellation (the
// caller's run may itself have just been cancelled) but carrying a bounded
// timeout of its own.
func (p *Pipeline) fallback(ctx context.Context, span trace.Span, player, turn int, cause error) {
	p.logger.Warn("pipeline: turn failed, falling back to keep-status-quo", "player", player, "turn", turn, "error", cause)
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	fallbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	args, _ := json.Marshal(map[string]any{"player": player, "turn": turn})
	if _, err := p.catalog.Call(fallbackCtx, keepStatusQuoTool, args); err != nil {
		p.logger.Error("pipeline: keep-status-quo fallback itself failed", "player", player, "turn", turn, "error", err)
	}

	if p.observer != nil {
		p.observer.PublishFallback(fallbackCtx, player, turn, cause)
	}
	p.signalReady(fallbackCtx, player, turn)
}

// signalReady reports "player N ready" to the bridge (§4.P1 step 6).
func (p *Pipeline) signalReady(ctx context.Context, player, turn int) {
	if _, err := p.bridge.Call(ctx, playerReadyFunction, []any{player, turn}); err != nil {
		p.logger.Error("pipeline: failed to signal player ready", "player", player, "turn", turn, "error", err)
	}
}
