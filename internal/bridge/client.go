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

// Package bridge implements the L3 bridge client: an HTTP + SSE client for
// the native bridge service (POST /script/exec, POST /script/call,
// GET /health, GET /events), with two connection pools and a restartable,
// broadcasting event subscription.
//
// Grounded on pkg/a2a/client/http.go's HTTPClient shape (context-aware
// requests, status-code handling, SSE read loop).
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// Result is the uniform {success, result?, error?} shape returned by both
// /script/exec and /script/call.
type Result struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
}

// WireError is the bridge's error body: {code, message, details?}.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Well-known bridge error codes, per §6.
const (
	CodeNetworkError    = "NETWORK_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeUnknownFunction = "UNKNOWN_FUNCTION"
	CodeScriptError     = "SCRIPT_ERROR"
)

// Health is the decoded response of GET /health.
type Health struct {
	BridgeUp bool    `json:"bridgeUp"`
	RemoteUp bool    `json:"remoteUp"`
	Uptime   float64 `json:"uptime"`
	Version  string  `json:"version"`
}

// Client is the L3 bridge client. Execute, Call, and Health are safe to
// call concurrently, per §4.L3's concurrency contract.
type Client struct {
	baseURL string

	standard *http.Client // ~50 sockets, general-purpose calls
	fast     *http.Client // ~5 sockets, low-latency preregistered calls

	broadcaster *broadcaster
}

// New creates a bridge client against baseURL with the two pools sized per
// §2's L3 description.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		standard: &http.Client{
			Transport: &http.Transport{MaxIdleConnsPerHost: 50, MaxConnsPerHost: 50},
			Timeout:   30 * time.Second,
		},
		fast: &http.Client{
			Transport: &http.Transport{MaxIdleConnsPerHost: 5, MaxConnsPerHost: 5},
			Timeout:   5 * time.Second,
		},
		broadcaster: newBroadcaster(),
	}
}

// Execute compiles and runs script once.
func (c *Client) Execute(ctx context.Context, script string) (*Result, error) {
	return c.post(ctx, c.standard, "/script/exec", map[string]any{"script": script})
}

// Call invokes a previously registered script by name with positional args.
// Call uses the fast pool: it is the hot path for preregistered remote
// functions invoked every turn.
func (c *Client) Call(ctx context.Context, name string, args []any) (*Result, error) {
	return c.post(ctx, c.fast, "/script/call", map[string]any{"function": name, "args": args})
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, path string, body map[string]any) (*Result, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.InvalidArgument, "bridge.marshal", "failed to marshal request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "bridge.new_request", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, voxerr.Wrap(voxerr.Timeout, "bridge.deadline_exceeded", "bridge call deadline exceeded", err)
		}
		return nil, voxerr.Wrap(voxerr.BridgeError, CodeNetworkError, "bridge request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.DependencyFailed, "bridge.read_body", "failed to read bridge response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, voxerr.New(voxerr.BridgeError, CodeNetworkError, fmt.Sprintf("bridge returned %d: %s", resp.StatusCode, string(respBody)))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "bridge.decode_response", "failed to decode bridge response", err)
	}

	if !result.Success && result.Error != nil {
		return &result, voxerr.New(voxerr.BridgeError, result.Error.Code, result.Error.Message).WithDetails(result.Error.Details)
	}

	return &result, nil
}

// Health reports the bridge's current health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "bridge.health_request", "failed to build health request", err)
	}

	resp, err := c.fast.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, voxerr.Wrap(voxerr.Timeout, "bridge.health_deadline", "health check deadline exceeded", err)
		}
		return nil, voxerr.Wrap(voxerr.BridgeError, CodeNetworkError, "health check failed", err)
	}
	defer resp.Body.Close()

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "bridge.health_decode", "failed to decode health response", err)
	}
	return &health, nil
}
