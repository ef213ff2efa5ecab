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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/config"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/logging"
)

// ServeStdioCmd runs the RPC server over standard I/O, one JSON-RPC
// request per line on stdin, one response per line on stdout (§6).
type ServeStdioCmd struct{}

// Run builds the full dependency graph and serves until stdin closes or a
// signal arrives: sequential construction, deferred teardown, context
// cancelled on SIGINT/SIGTERM.
func (c *ServeStdioCmd) Run() error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return wrapInit(err)
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return wrapInit(fmt.Errorf("building application: %w", err))
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchSignals(cancel)

	if err := app.StartBackground(ctx); err != nil {
		return wrapInit(fmt.Errorf("starting background workers: %w", err))
	}

	logger.Info("vox: serving over stdio")
	return app.RPC.ServeStdio(ctx, os.Stdin, os.Stdout)
}

// ServeHTTPCmd runs the RPC server over HTTP, exposing the same tool
// catalog as serve-stdio plus a Prometheus /metrics endpoint.
type ServeHTTPCmd struct {
	Port int `help:"Port to listen on." default:"8090"`
}

func (c *ServeHTTPCmd) Run() error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return wrapInit(err)
	}
	if c.Port != 0 {
		cfg.HTTPPort = c.Port
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return wrapInit(fmt.Errorf("building application: %w", err))
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchSignals(cancel)

	if err := app.StartBackground(ctx); err != nil {
		return wrapInit(fmt.Errorf("starting background workers: %w", err))
	}

	mux := http.NewServeMux()
	mux.Handle("/", app.RPC.Router())
	mux.Handle("/metrics", app.Telemetry.MetricsHandler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("vox: serving over http", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// watchSignals cancels cancel on the first SIGINT/SIGTERM, giving every
// background goroutine a chance to unwind before the process exits 0.
func watchSignals(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}

// loadConfigAndLogger loads configuration, then initializes the
// process-wide logger from its log_level/log_format, always writing to
// stderr: serve-stdio reserves stdout for the JSON-RPC protocol, and
// serve-http has no similar constraint but uses the same destination for
// consistency.
func loadConfigAndLogger() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	format := cfg.LogFormat
	if format == "" {
		format = logging.DefaultFormat(os.Stderr)
	}
	logger := logging.Init(logging.ParseLevel(cfg.LogLevel), os.Stderr, format)
	return cfg, logger, nil
}
