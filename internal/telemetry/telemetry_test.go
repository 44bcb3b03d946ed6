package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.False(t, tel.IsEnabled())
	health := tel.Health()
	assert.True(t, health.Healthy)
	assert.False(t, health.Degraded)

	// No-op providers still hand out usable tracers and meters
	tracer := tel.Tracer("scadad.test")
	_, span := tracer.Start(context.Background(), "noop")
	span.End()

	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	tel, err := New(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, tel.IsEnabled())
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry

	assert.False(t, tel.IsEnabled())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.True(t, tel.Health().Degraded)

	tracer := tel.Tracer("scadad.test")
	_, span := tracer.Start(context.Background(), "nil-telemetry")
	span.End()
}

func TestTestTelemetry_RecordsSpans(t *testing.T) {
	tt := NewTestTelemetry()

	tracer := tt.Tracer("scadad.browse")
	_, span := tracer.Start(context.Background(), "browse.Browse",
		oteltrace.WithAttributes(attribute.String("connection_id", "plant-a")))
	span.End()

	tt.AssertSpanExists(t, "browse.Browse")
	tt.AssertSpanAttribute(t, "browse.Browse", "connection_id", "plant-a")
	assert.Len(t, tt.Spans(), 1)
}

func TestTestTelemetry_CollectsMetrics(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	meter := tt.Meter("scadad.browse")
	counter, err := meter.Int64Counter("scadad.browse.driver_calls_total")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	require.NoError(t, tt.MetricReader.ForceFlush(ctx))
	collected := tt.MetricReader.Metrics()
	require.NotEmpty(t, collected)

	found := false
	for _, rm := range collected {
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if m.Name == "scadad.browse.driver_calls_total" {
					found = true
				}
			}
		}
	}
	assert.True(t, found, "counter not collected")
}
