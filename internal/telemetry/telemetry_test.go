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

package telemetry

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSQLiteSpanExporter_RoundTripsSpanRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ctx", "session-1.db")
	exporter, err := NewSQLiteSpanExporter(dbPath, "session-1")
	require.NoError(t, err)
	defer exporter.Shutdown(context.Background())

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	tracer := tp.Tracer("test")
	_, span := tracer.Start(context.Background(), "turn.decide")
	span.SetAttributes(attribute.Int(turnAttributeKey, 42), attribute.String("player", "1"))
	span.SetStatus(codes.Ok, "done")
	span.End()

	require.NoError(t, tp.ForceFlush(context.Background()))

	db, err := sql.Open("sqlite3", "file:"+dbPath)
	require.NoError(t, err)
	defer db.Close()

	var name, contextID string
	var turn int
	row := db.QueryRow(`SELECT name, context_id, turn FROM spans WHERE context_id = ?`, "session-1")
	require.NoError(t, row.Scan(&name, &contextID, &turn))
	assert.Equal(t, "turn.decide", name)
	assert.Equal(t, "session-1", contextID)
	assert.Equal(t, 42, turn)
}

func TestSQLiteSpanExporter_ExportSpansNoopsOnEmptyBatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session-2.db")
	exporter, err := NewSQLiteSpanExporter(dbPath, "session-2")
	require.NoError(t, err)
	defer exporter.Shutdown(context.Background())

	require.NoError(t, exporter.ExportSpans(context.Background(), nil))
}

func TestNewManager_DisabledIsSafeNoop(t *testing.T) {
	m, err := NewManager(context.Background(), Config{Enabled: false}, nil)
	require.NoError(t, err)

	assert.NotNil(t, m.Tracer())
	m.Recorder().RecordAgentCall(context.Background(), "diplomat", true, 12.5)
	m.Recorder().RecordTurn(context.Background(), 1, 100, false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.MetricsHandler().ServeHTTP(rec, req)
	assert.Equal(t, 503, rec.Code)

	require.NoError(t, m.Shutdown(context.Background()))
}

func TestNewManager_EnabledWiresTracingAndMetrics(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(context.Background(), Config{
		Enabled:     true,
		Root:        root,
		ContextRoot: "game-1",
		ContextID:   "session-test",
		ServiceName: "vox-deorum",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "session-test", m.ContextID())

	_, span := m.Tracer().Start(context.Background(), "agent.diplomat.decide")
	span.SetAttributes(attribute.Int(turnAttributeKey, 7))
	span.End()

	m.Recorder().RecordAgentCall(context.Background(), "diplomat", true, 42.0)
	m.Recorder().RecordLLMCall(context.Background(), "anthropic", "claude", true, 500, 100, 50)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.MetricsHandler().ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "vox_agent_calls_total")

	require.NoError(t, m.Shutdown(context.Background()))

	dbPath := filepath.Join(root, "game-1", "session-test.db")
	db, err := sql.Open("sqlite3", "file:"+dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM spans`).Scan(&count))
	assert.Positive(t, count)
}
