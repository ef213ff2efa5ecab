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
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
)

// ServeStdio reads newline-delimited JSON-RPC requests from r and writes
// responses (and any progress notifications) to w, one JSON value per
// line, until r is exhausted or ctx is cancelled. Writes are serialized
// since notifications can interleave with the eventual call_tool response.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	var writeMu sync.Mutex
	encode := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		enc := json.NewEncoder(w)
		return enc.Encode(v)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = encode(errorResponse(nil, codeParseError, "invalid JSON-RPC request: "+err.Error()))
			continue
		}

		resp := s.Handle(ctx, req, func(n notification) { _ = encode(n) })
		if err := encode(resp); err != nil {
			return err
		}
	}

	return scanner.Err()
}
