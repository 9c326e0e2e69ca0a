package telemetry

import (
	"context"
	"testing"

	"github.com/aws/smithy-go/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewTracerProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tracing *TracingConfig
		wantSDK bool
	}{
		{name: "no tracing section"},
		{name: "disabled", tracing: &TracingConfig{Enabled: false, Sampling: ptr.Float64(1)}},
		{name: "enabled with default sampling", tracing: &TracingConfig{Enabled: true}, wantSDK: true},
		{name: "enabled with half sampling", tracing: &TracingConfig{Enabled: true, Sampling: ptr.Float64(0.5)}, wantSDK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tp, err := NewTracerProvider(ctx, WithTracingConfig(tt.tracing), WithTracerInsecure(true))
			require.NoError(t, err)

			if !tt.wantSDK {
				assert.IsType(t, noop.TracerProvider{}, tp)
				return
			}
			sdkTP, ok := tp.(*sdktrace.TracerProvider)
			require.True(t, ok)
			require.NoError(t, sdkTP.Shutdown(ctx))
		})
	}
}

func TestTracerProviderOptions(t *testing.T) {
	t.Parallel()

	tc := &TracingConfig{Enabled: true}
	cfg := &tracerProviderConfig{}
	for _, opt := range []TracerProviderOption{
		WithTracerServiceName("sotags"),
		WithTracerServiceVersion("v1.4.0"),
		WithTracingConfig(tc),
		WithTracerEndpoint("otel-collector:4318"),
		WithTracerInsecure(true),
		WithTracerResourceAttributes(attribute.String("storage.type", "sqlite")),
	} {
		opt(cfg)
	}

	assert.Equal(t, "sotags", cfg.serviceName)
	assert.Equal(t, "v1.4.0", cfg.serviceVersion)
	assert.Same(t, tc, cfg.tracingConfig)
	assert.Equal(t, "otel-collector:4318", cfg.endpoint)
	assert.True(t, cfg.insecure)
	assert.Len(t, cfg.attributes, 1)
}
