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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// turnAttributeKey is the span attribute internal/pipeline tags every turn
// span with (attribute.Int("pipeline.turn", turn)); the exporter reads it
// back off each span to populate the spans.turn column.
const turnAttributeKey = "pipeline.turn"

const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS spans (
	id             TEXT PRIMARY KEY,
	context_id     TEXT NOT NULL,
	turn           INTEGER NOT NULL DEFAULT 0,
	trace_id       TEXT NOT NULL,
	span_id        TEXT NOT NULL,
	parent_span_id TEXT,
	name           TEXT NOT NULL,
	start_time     INTEGER NOT NULL,
	end_time       INTEGER NOT NULL,
	duration_ms    REAL NOT NULL,
	attributes     TEXT,
	status_code    TEXT,
	status_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_spans_context_id ON spans(context_id);
CREATE INDEX IF NOT EXISTS idx_spans_turn ON spans(turn);
CREATE INDEX IF NOT EXISTS idx_spans_trace_id ON spans(trace_id);
CREATE INDEX IF NOT EXISTS idx_spans_parent_span_id ON spans(parent_span_id);
CREATE INDEX IF NOT EXISTS idx_spans_start_time ON spans(start_time);
`

const insertSpanSQL = `
INSERT OR REPLACE INTO spans
	(id, context_id, turn, trace_id, span_id, parent_span_id, name, start_time, end_time, duration_ms, attributes, status_code, status_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// SQLiteSpanExporter persists every finished span as a row in a per-session
// SQLite database, matching the on-disk "spans" table the bridge side reads
// for the telepathist inspector.
//
// Grounded on pkg/observability/debug_exporter.go's DebugExporter (same
// sdktrace.SpanExporter shape: ExportSpans batches, Shutdown closes),
// generalized from an in-memory map to a SQLite table whose schema follows
// pkg/agent/task_service_sql.go's CREATE TABLE IF NOT EXISTS / CREATE INDEX
// IF NOT EXISTS convention, on the sqlite3/WAL driver internal/knowledge and
// internal/gamedb already standardize on.
type SQLiteSpanExporter struct {
	mu        sync.Mutex
	db        *sql.DB
	contextID string
}

var _ sdktrace.SpanExporter = (*SQLiteSpanExporter)(nil)

// NewSQLiteSpanExporter opens (creating parent directories and the schema as
// needed) the span database at path, tagging every exported row with
// contextID.
func NewSQLiteSpanExporter(path, contextID string) (*SQLiteSpanExporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "telemetry.mkdir", fmt.Sprintf("failed to create telemetry directory for %s", path), err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL")
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "telemetry.open_db", fmt.Sprintf("failed to open span database %s", path), err)
	}
	if _, err := db.Exec(createSchemaSQL); err != nil {
		db.Close()
		return nil, voxerr.Wrap(voxerr.Internal, "telemetry.create_schema", "failed to create spans schema", err)
	}

	return &SQLiteSpanExporter{db: db, contextID: contextID}, nil
}

// ExportSpans writes spans to the database in one transaction.
func (e *SQLiteSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(spans) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "telemetry.begin_tx", "failed to begin span export transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSpanSQL)
	if err != nil {
		return voxerr.Wrap(voxerr.Internal, "telemetry.prepare_insert", "failed to prepare span insert", err)
	}
	defer stmt.Close()

	for _, span := range spans {
		row := e.toRow(span)
		if _, err := stmt.ExecContext(ctx,
			row.id, row.contextID, row.turn, row.traceID, row.spanID, row.parentSpanID,
			row.name, row.startTime, row.endTime, row.durationMs, row.attributes,
			row.statusCode, row.statusMessage,
		); err != nil {
			return voxerr.Wrap(voxerr.Internal, "telemetry.insert_span", "failed to insert span row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return voxerr.Wrap(voxerr.Internal, "telemetry.commit_tx", "failed to commit span export transaction", err)
	}
	return nil
}

// Shutdown closes the underlying database.
func (e *SQLiteSpanExporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.db.Close(); err != nil {
		return voxerr.Wrap(voxerr.Internal, "telemetry.close_db", "failed to close span database", err)
	}
	return nil
}

type spanRow struct {
	id            string
	contextID     string
	turn          int
	traceID       string
	spanID        string
	parentSpanID  string
	name          string
	startTime     int64
	endTime       int64
	durationMs    float64
	attributes    string
	statusCode    string
	statusMessage string
}

func (e *SQLiteSpanExporter) toRow(span sdktrace.ReadOnlySpan) spanRow {
	start := span.StartTime().UnixNano()
	end := span.EndTime().UnixNano()

	attrs := make(map[string]string, len(span.Attributes()))
	turn := 0
	for _, attr := range span.Attributes() {
		key := string(attr.Key)
		attrs[key] = attr.Value.Emit()
		if key == turnAttributeKey {
			turn = int(attr.Value.AsInt64())
		}
	}
	attrJSON, _ := json.Marshal(attrs)

	var parentSpanID string
	if span.Parent().HasSpanID() {
		parentSpanID = span.Parent().SpanID().String()
	}

	return spanRow{
		id:            span.SpanContext().SpanID().String(),
		contextID:     e.contextID,
		turn:          turn,
		traceID:       span.SpanContext().TraceID().String(),
		spanID:        span.SpanContext().SpanID().String(),
		parentSpanID:  parentSpanID,
		name:          span.Name(),
		startTime:     start,
		endTime:       end,
		durationMs:    float64(end-start) / 1e6,
		attributes:    string(attrJSON),
		statusCode:    span.Status().Code.String(),
		statusMessage: span.Status().Description,
	}
}
