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

package rpcserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	mcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/tool"
	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// Notifier sends an out-of-band notification to whichever transport issued
// the in-flight call_tool request (a stdio line, or a newline-delimited
// JSON line on the HTTP response body).
type Notifier func(notification)

// Server dispatches list_tools/call_tool/shutdown against a tool.Catalog.
// One Server is shared by both transports (§4.C2: stdio and HTTP are two
// front ends onto the same dispatch table).
type Server struct {
	catalog *tool.Catalog
	logger  *slog.Logger

	mu       sync.Mutex
	draining bool
	inFlight sync.WaitGroup
	onStop   func()
}

// New creates a Server dispatching against catalog. onStop is invoked once
// when a shutdown request is handled, typically cancelling the process's
// root context so both transports unwind.
func New(catalog *tool.Catalog, logger *slog.Logger, onStop func()) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{catalog: catalog, logger: logger, onStop: onStop}
}

// Handle dispatches one request and returns its response. notify, if
// non-nil, lets call_tool emit progress notifications before returning its
// final result.
func (s *Server) Handle(ctx context.Context, req request, notify Notifier) response {
	s.mu.Lock()
	draining := s.draining
	s.mu.Unlock()

	if draining && req.Method != "shutdown" {
		return errorResponse(req.ID, codeInvalidRequest, "server is shutting down")
	}

	s.inFlight.Add(1)
	defer s.inFlight.Done()

	switch req.Method {
	case "list_tools":
		return s.handleListTools(req)
	case "call_tool":
		return s.handleCallTool(ctx, req, notify)
	case "shutdown":
		return s.handleShutdown(req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) handleListTools(req request) response {
	return resultResponse(req.ID, map[string]any{"tools": s.catalog.List()})
}

func (s *Server) handleCallTool(ctx context.Context, req request, notify Notifier) response {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid call_tool params: "+err.Error())
	}
	if params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "call_tool requires a tool name")
	}

	if notify != nil {
		notify(notification{JSONRPC: jsonrpcVersion, Method: "progress", Params: map[string]any{"tool": params.Name, "status": "started"}})
	}

	result, err := s.catalog.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		code := codeInternalError
		if voxerr.KindOf(err) == voxerr.InvalidArgument || voxerr.KindOf(err) == voxerr.NotFound {
			code = codeInvalidParams
		}
		return errorResponse(req.ID, code, err.Error())
	}

	if notify != nil {
		notify(notification{JSONRPC: jsonrpcVersion, Method: "progress", Params: map[string]any{"tool": params.Name, "status": "completed"}})
	}

	return resultResponse(req.ID, toCallToolResult(result))
}

// toCallToolResult packs an arbitrary JSON-marshalable value into an MCP
// CallToolResult, encoded as a single text content block per the teacher's
// own client-side assumption of at-most-one-text-result (pkg/tool/mcptoolset
// parseToolResponse's "len(texts) == 1" branch).
func toCallToolResult(value any) *mcp.CallToolResult {
	raw, err := json.Marshal(value)
	if err != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.TextContent{Text: err.Error()}}}
	}
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Text: string(raw)}}}
}

func (s *Server) handleShutdown(req request) response {
	s.mu.Lock()
	alreadyDraining := s.draining
	s.draining = true
	s.mu.Unlock()

	if !alreadyDraining && s.onStop != nil {
		go func() {
			s.inFlight.Wait()
			s.onStop()
		}()
	}

	return resultResponse(req.ID, map[string]any{"status": "draining"})
}
