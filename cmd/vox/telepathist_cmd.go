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
	"log/slog"
	"time"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agentruntime"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/agents"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/telepathist"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/tool"
)

// telepathistAgentName is the name agents.NewTelepathist is registered
// under in the minimal runtime this command builds - a different runtime
// than NewApp's, since narrating a finished session needs only the
// telepathist agent, not the turn-pipeline's full tool catalog.
const telepathistAgentName = "telepathist"

// TelepathistCmd runs the offline narration pass over one session's
// recorded telemetry (§6): for every turn with recorded spans, generate
// (or reuse a cached) short and full summary, then stitch the per-turn
// summaries into one phase summary covering the whole session.
type TelepathistCmd struct {
	DB string `help:"Path to the session's telemetry SQLite database." required:"" type:"path"`
}

func (c *TelepathistCmd) Run() error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return wrapInit(err)
	}

	resolve, err := newModelResolver(cfg)
	if err != nil {
		return wrapInit(fmt.Errorf("building model resolver: %w", err))
	}
	runtime := agentruntime.NewRuntime(tool.NewCatalog(), resolve)
	runtime.Register(agents.NewTelepathist(telepathistAgentName, modelTierDefault))

	store, err := telepathist.Open(telepathist.DBPath(c.DB))
	if err != nil {
		return wrapInit(fmt.Errorf("opening telepathist store: %w", err))
	}
	defer store.Close()

	generator, err := telepathist.NewGenerator(c.DB, store, runtime, telepathistAgentName, func() int64 { return time.Now().Unix() })
	if err != nil {
		return wrapInit(fmt.Errorf("opening telemetry database: %w", err))
	}
	defer generator.Close()

	return runTelepathist(generator, logger)
}

func runTelepathist(generator *telepathist.Generator, logger *slog.Logger) error {
	ctx := context.Background()

	turns, err := generator.Turns(ctx)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		logger.Info("telepathist: no turns recorded in this session, nothing to summarize")
		return nil
	}

	for _, turn := range turns {
		if _, err := generator.GenerateTurnSummary(ctx, turn); err != nil {
			return fmt.Errorf("generating summary for turn %d: %w", turn, err)
		}
		logger.Info("telepathist: summarized turn", "turn", turn)
	}

	phase, err := generator.GeneratePhaseSummary(ctx, turns[0], turns[len(turns)-1])
	if err != nil {
		return fmt.Errorf("generating phase summary: %w", err)
	}
	logger.Info("telepathist: summarized session", "fromTurn", phase.FromTurn, "toTurn", phase.ToTurn)
	return nil
}
