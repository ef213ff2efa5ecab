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

// Package telemetry is the X module: span recording to a per-session
// SQLite database, agent/tool/LLM/turn metrics exported for Prometheus
// scraping, and the lifecycle manager tying both to the process.
//
// Grounded on pkg/observability/manager.go's Manager (own tracer + own
// metrics, both optional) and pkg/observability/tracer.go's
// init-provider-then-set-global idiom, with the OTLP exporter swapped for
// this repo's SQLite span exporter (pkg/observability/debug_exporter.go's
// custom-SpanExporter shape) since otlptracegrpc isn't in this module's
// dependency set.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// Config configures one process's telemetry session.
type Config struct {
	// Enabled turns tracing and metrics on. When false, Manager is a no-op.
	Enabled bool
	// Root is the on-disk telemetry root (§6 "telemetry root", default "./telemetry").
	Root string
	// ContextRoot groups related sessions under Root (e.g. a save/instance
	// name); "default" when empty. Not pinned by name in the spec beyond
	// the literal path shape "telemetry/<context-root>/<context-id>.db".
	ContextRoot string
	// ContextID identifies this session's span database; "session-" plus a
	// fresh uuid when empty.
	ContextID string
	// ServiceName tags the resource attached to every exported span.
	ServiceName string
}

// Manager owns the tracer provider, the SQLite span exporter, and the
// metrics meter/registry for one process. Shared globally the same way
// pkg/observability.Manager is: constructed once at startup, passed down
// by reference.
type Manager struct {
	enabled        bool
	contextID      string
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	spanExporter   *SQLiteSpanExporter
	meterProvider  *sdkmetric.MeterProvider
	recorder       Recorder
	metricsHandler http.Handler
}

// NewManager builds tracing and metrics from cfg. A disabled config
// returns a Manager whose Tracer/Recorder are safe no-ops.
func NewManager(ctx context.Context, cfg Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return &Manager{tracer: otel.Tracer("vox-deorum/noop"), recorder: NoopRecorder{}, metricsHandler: disabledMetricsHandler()}, nil
	}

	if cfg.ContextRoot == "" {
		cfg.ContextRoot = "default"
	}
	contextID := cfg.ContextID
	if contextID == "" {
		contextID = fmt.Sprintf("session-%s", uuid.New().String())
	}

	dbPath := filepath.Join(cfg.Root, cfg.ContextRoot, contextID+".db")
	spanExporter, err := NewSQLiteSpanExporter(dbPath, contextID)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		spanExporter.Shutdown(ctx)
		return nil, voxerr.Wrap(voxerr.Internal, "telemetry.new_resource", "failed to build telemetry resource", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	metricsExporter, err := otelprometheus.New()
	if err != nil {
		tracerProvider.Shutdown(ctx)
		return nil, voxerr.Wrap(voxerr.Internal, "telemetry.new_prometheus_exporter", "failed to build metrics exporter", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricsExporter))

	recorder, err := newOTelRecorder(meterProvider.Meter("vox-deorum/telemetry"))
	if err != nil {
		tracerProvider.Shutdown(ctx)
		return nil, err
	}

	logger.Info("telemetry: initialized", "db_path", dbPath, "context_id", contextID)

	return &Manager{
		enabled:        true,
		contextID:      contextID,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer("vox-deorum/telemetry"),
		spanExporter:   spanExporter,
		meterProvider:  meterProvider,
		recorder:       recorder,
		metricsHandler: promhttp.Handler(),
	}, nil
}

// Tracer returns the tracer every agent/pipeline span should start from.
func (m *Manager) Tracer() trace.Tracer {
	if m == nil || m.tracer == nil {
		return otel.Tracer("vox-deorum/noop")
	}
	return m.tracer
}

// Recorder returns the metrics recorder; a no-op when telemetry is disabled.
func (m *Manager) Recorder() Recorder {
	if m == nil || m.recorder == nil {
		return NoopRecorder{}
	}
	return m.recorder
}

// MetricsHandler serves the Prometheus /metrics endpoint (§6 X expansion).
func (m *Manager) MetricsHandler() http.Handler {
	if m == nil || m.metricsHandler == nil {
		return disabledMetricsHandler()
	}
	return m.metricsHandler
}

// ContextID returns the session identifier spans in this process are
// tagged with.
func (m *Manager) ContextID() string {
	if m == nil {
		return ""
	}
	return m.contextID
}

// Shutdown flushes and closes the tracer provider, metrics reader, and the
// SQLite span database.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil || !m.enabled {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var firstErr error
	if m.tracerProvider != nil {
		if err := m.tracerProvider.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.meterProvider != nil {
		if err := m.meterProvider.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func disabledMetricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}
