package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/alem-hub/course-nudge/config"
	"github.com/alem-hub/course-nudge/pkg/logger"
)

func tracingConfig(enabled bool) *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "course-nudge",
			Version:     "test",
			Environment: config.EnvDevelopment,
		},
		Observability: config.ObservabilityConfig{TracingEnabled: enabled},
	}
}

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := initTracing(tracingConfig(false), logger.Nop(), &buf)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	assert.Zero(t, buf.Len())
}

func TestInitTracing_ExportsSpansOnShutdown(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := initTracing(tracingConfig(true), logger.Nop(), &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("course-nudge/test").Start(context.Background(), "evaluate-student")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "evaluate-student")
	assert.Contains(t, buf.String(), "course-nudge")
}
