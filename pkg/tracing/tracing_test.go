package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracer_Disabled(t *testing.T) {
	p, err := InitTracer(context.Background(), Config{ServiceName: "svclaunch"})
	require.NoError(t, err)

	_, span := p.StartSpan(context.Background(), "noop")
	End(span, nil)

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestEnd_RecordsStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	p := NewProviderWithSpanProcessor("test", sdktrace.NewSimpleSpanProcessor(exporter))

	_, ok := p.StartSpan(context.Background(), "launch", attribute.String("service", "photo-service"))
	End(ok, nil)
	_, bad := p.StartSpan(context.Background(), "generate")
	End(bad, errors.New("protoc missing"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "launch", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, "generate", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "protoc missing", spans[1].Status.Description)
}
