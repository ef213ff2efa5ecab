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
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the HTTP transport: POST /rpc for JSON-RPC calls, GET
// /tools as a convenience mirror of list_tools, GET /health for
// liveness. Grounded on pkg/server/http.go's route layout (health +
// JSON-RPC endpoint) using chi instead of a bare ServeMux, since chi is
// already the teacher's routing dependency elsewhere in its transport
// layer.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/tools", s.handleListToolsHTTP)
	r.Post("/rpc", s.handleRPC)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleListToolsHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"tools": s.catalog.List()})
}

// handleRPC decodes one JSON-RPC request per POST body. Progress
// notifications for this request are flushed as newline-delimited JSON
// before the final response, so a streaming client can read them off the
// same response body (§4.C2's progress notifications over HTTP).
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse(nil, codeParseError, "invalid JSON-RPC request: "+err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")

	flusher, canFlush := w.(http.Flusher)
	encode := func(v any) {
		_ = json.NewEncoder(w).Encode(v)
		if canFlush {
			flusher.Flush()
		}
	}

	resp := s.Handle(r.Context(), req, func(n notification) { encode(n) })
	encode(resp)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("rpc http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
