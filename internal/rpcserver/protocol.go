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

// Package rpcserver implements the C2 JSON-RPC server: the same three
// methods (list_tools, call_tool, shutdown) served over stdio for
// subprocess embedding and over HTTP for long-lived deployments.
//
// The request/response/error envelope mirrors pkg/tool/mcptoolset's
// jsonRPCRequest/jsonRPCResponse/jsonRPCError types, used there client-side
// to talk to an external MCP server; here the same shapes serve the
// opposite role. call_tool's result payload reuses
// github.com/mark3labs/mcp-go/mcp's CallToolResult/TextContent, the same
// package the teacher already depends on for its MCP client; its arguments
// decode into this package's own callToolParams.
package rpcserver

import "encoding/json"

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// notification is a server-to-client message with no id, used for
// call_tool progress updates (§4.C2's "progress notifications").
type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

const (
	jsonrpcVersion = "2.0"

	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

func errorResponse(id any, code int, message string) response {
	return response{JSONRPC: jsonrpcVersion, ID: id, Error: &rpcError{Code: code, Message: message}}
}

func resultResponse(id any, result any) response {
	return response{JSONRPC: jsonrpcVersion, ID: id, Result: result}
}

// callToolParams is the decoded params of a call_tool request.
type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}
