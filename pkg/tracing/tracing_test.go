package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vegshop/vegshop-backend/pkg/config"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracingConfig{Enabled: false}, "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := Tracer("test").Start(context.Background(), "noop")
	defer span.End()
	require.False(t, span.SpanContext().IsSampled())
}

func TestSetupEnabledBuildsProvider(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracingConfig{
		Enabled:     true,
		Endpoint:    "localhost:4318",
		Insecure:    true,
		SampleRatio: 1,
	}, "test")
	require.NoError(t, err)

	_, span := Tracer("test").Start(context.Background(), "sampled")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
