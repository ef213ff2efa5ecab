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

// Command vox is the core process: it assembles the database gateway,
// knowledge store, bridge client, tool catalog, agent runtime, and turn
// pipeline, then exposes them either as a standing JSON-RPC server (over
// stdio or HTTP) or as a one-shot diagnostic/setup command.
//
// Usage:
//
//	vox serve-stdio
//	vox serve-http --port 8090
//	vox export-schemas --out ./schemas
//	vox telepathist --db ./telemetry/default/session-1.db
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// CLI is the top-level command surface: a kong struct-tag-driven set of
// subcommands, each a plain struct with a Run method.
type CLI struct {
	Version       VersionCmd       `cmd:"" help:"Show version information."`
	ServeStdio    ServeStdioCmd    `cmd:"" name:"serve-stdio" help:"Run the RPC server over standard I/O."`
	ServeHTTP     ServeHTTPCmd     `cmd:"" name:"serve-http" help:"Run the RPC server over HTTP."`
	ExportSchemas ExportSchemasCmd `cmd:"" name:"export-schemas" help:"Dump the rules database schema as JSON."`
	Telepathist   TelepathistCmd   `cmd:"" name:"telepathist" help:"Generate turn/phase summaries for a completed session."`
}

// VersionCmd prints the build version read from module build info rather
// than a hand-maintained version constant.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("vox %s\n", version)
	return nil
}

func main() {
	_ = godotenv.Load()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("vox"),
		kong.Description("Vox Deorum core: LLM-driven strategic decision layer"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a top-level command error to §6's CLI exit-code
// contract: 0 for a nil error (clean shutdown), 1 for a fatal
// initialization failure, 2 for everything else (an unhandled internal
// error surfacing after startup).
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := err.(*initError); ok {
		return 1
	}
	return 2
}

// initError marks an error as a fatal initialization failure (exit code 1)
// rather than a post-startup internal error (exit code 2).
type initError struct{ cause error }

func (e *initError) Error() string { return e.cause.Error() }
func (e *initError) Unwrap() error { return e.cause }

func wrapInit(err error) error {
	if err == nil {
		return nil
	}
	return &initError{cause: err}
}
