package relay

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
	"go.opentelemetry.io/otel/trace"

	"github.com/kite-labs/relay-go/wire"
)

func tracingFixture(t *testing.T) (*Client, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	c := quietClient()
	c.Use(NewTracing(tp))
	return c, recorder
}

func attrValue(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_SuccessSpan(t *testing.T) {
	c, recorder := tracingFixture(t)
	ctx := context.Background()
	req := mustRequest(t, "GET", "http://example.com:8080/a")

	c.Trigger(ctx, TriggerSending, req)
	c.Trigger(ctx, TriggerConnected, okResponse("hello"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "relay.connect", span.Name())
	assert.Equal(t, trace.SpanKindClient, span.SpanKind())

	method, ok := attrValue(span, "http.request.method")
	require.True(t, ok)
	assert.Equal(t, "GET", method.AsString())

	port, ok := attrValue(span, "server.port")
	require.True(t, ok)
	assert.Equal(t, int64(8080), port.AsInt64())

	status, ok := attrValue(span, "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(200), status.AsInt64())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestTracing_ErrorStatusSpan(t *testing.T) {
	c, recorder := tracingFixture(t)
	ctx := context.Background()

	c.Trigger(ctx, TriggerSending, mustRequest(t, "GET", "http://example.com/a"))
	c.Trigger(ctx, TriggerConnected, &wire.Response{
		Version:    "HTTP/1.1",
		StatusCode: "500",
		Reason:     "Internal Server Error",
	})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_FailureSpan(t *testing.T) {
	c, recorder := tracingFixture(t)
	ctx := context.Background()
	boom := errors.New("dial refused")

	c.Trigger(ctx, TriggerSending, mustRequest(t, "GET", "http://example.com/a"))
	c.Trigger(ctx, TriggerDisconnected, boom)

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	require.Len(t, span.Events(), 1, "the failure is recorded as a span event")
}

func TestTracing_CacheServedProducesNoSpan(t *testing.T) {
	// A cache hit skips "sending", so there is no span to close.
	c, recorder := tracingFixture(t)

	c.Trigger(context.Background(), TriggerConnected, okResponse("cached"))

	assert.Empty(t, recorder.Ended())
	_, pending := c.Extra(extraSpan)
	assert.False(t, pending)
}
