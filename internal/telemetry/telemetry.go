// Package telemetry wires OpenTelemetry tracing. Spans go to stderr or a file
// through the stdout exporter; when tracing is disabled the global no-op
// provider is left in place.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/saeedalam/stackforge/internal/config"
	"github.com/saeedalam/stackforge/internal/logger"
)

// Shutdown flushes and stops the tracer provider
type Shutdown func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs a global tracer provider according to cfg
func Init(ctx context.Context, cfg config.TracingConfig, service, version string, log *logger.Logger) (Shutdown, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}
	if log == nil {
		log = logger.Nop()
	}

	w, closeOut, err := openOutput(cfg.Output)
	if err != nil {
		return noopShutdown, err
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		closeOut()
		return noopShutdown, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", service),
		attribute.String("service.version", version),
	))
	if err != nil {
		log.Warn("otel resource init failed (continuing)", "error", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	log.Debug("otel tracing initialized", "output", cfg.Output)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		closeOut()
		return err
	}, nil
}

func openOutput(output string) (io.Writer, func(), error) {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "stderr":
		return os.Stderr, func() {}, nil
	case "stdout":
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace output: %w", err)
	}
	return f, func() { f.Close() }, nil
}
