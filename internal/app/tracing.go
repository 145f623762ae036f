package app

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/alem-hub/course-nudge/config"
	"github.com/alem-hub/course-nudge/pkg/logger"
)

// InitTracing installs the global tracer provider. Spans go to stdout when
// OTEL_STDOUT_ENABLED is set; otherwise the no-op provider stays in place.
// The returned function flushes and stops the provider.
func InitTracing(cfg *config.Config, log *logger.Logger) (func(context.Context) error, error) {
	return initTracing(cfg, log, os.Stdout)
}

func initTracing(cfg *config.Config, log *logger.Logger, out io.Writer) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Observability.TracingEnabled {
		return noop, nil
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(out)}
	if cfg.Observability.TracingPretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return noop, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.App.Name),
		attribute.String("service.version", cfg.App.Version),
		attribute.String("deployment.environment", string(cfg.App.Environment)),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("tracing initialized", logger.String("exporter", "stdout"))
	return tp.Shutdown, nil
}
