package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func TestMQHeaderCarrier_RoundTripsSpanContext(t *testing.T) {
	_, err := Init(Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTracerProvider(tp)

	ctx, span := StartSpan(context.Background(), "publish")
	defer span.End()

	headers := map[string]interface{}{"x-trace-id": "abc"}
	GetTextMapPropagator().Inject(ctx, NewMQHeaderCarrier(headers))
	require.Contains(t, headers, "traceparent")

	extracted := GetTextMapPropagator().Extract(context.Background(), NewMQHeaderCarrier(headers))
	_, child := StartSpan(extracted, "consume")
	defer child.End()

	assert.Equal(t, span.SpanContext().TraceID(), child.SpanContext().TraceID())
	assert.Equal(t, "abc", NewMQHeaderCarrier(headers).Get("x-trace-id"))
}
