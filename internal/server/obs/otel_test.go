package obs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupOTel_Disabled(t *testing.T) {
	o, err := SetupOTel(context.Background(), OTELConfig{})
	require.NoError(t, err)
	assert.Nil(t, o.TracerProvider)
	assert.NoError(t, o.Shutdown(context.Background()))
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestSetupOTel_Enabled(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	orig := newExporter
	newExporter = func(context.Context, string) (sdktrace.SpanExporter, error) { return exp, nil }
	t.Cleanup(func() { newExporter = orig })

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	o, err := SetupOTel(context.Background(), OTELConfig{Enable: true, ServiceName: "tokenkeeper", SampleRatio: 1})
	require.NoError(t, err)
	require.NotNil(t, o.TracerProvider)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	span.End()

	require.NoError(t, o.TracerProvider.ForceFlush(context.Background()))
	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "op", spans[0].Name)
	assert.NoError(t, o.Shutdown(context.Background()))
}

func TestSetupOTel_ExporterError(t *testing.T) {
	orig := newExporter
	newExporter = func(context.Context, string) (sdktrace.SpanExporter, error) { return nil, errors.New("dial") }
	t.Cleanup(func() { newExporter = orig })

	_, err := SetupOTel(context.Background(), OTELConfig{Enable: true})
	assert.Error(t, err)
}
