package relay

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kite-labs/relay-go/wire"
)

// scope is the instrumentation scope name for OpenTelemetry.
const scope = "github.com/kite-labs/relay-go/relay"

// Tracing is a middleware recording one OpenTelemetry span per socket
// connection, from the "sending" event to the terminal event. Cache-served
// connections skip "sending" and therefore produce no span.
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing creates the tracing middleware on the given provider.
func NewTracing(tp trace.TracerProvider) *Tracing {
	return &Tracing{tracer: tp.Tracer(scope)}
}

// Inject implements Middleware.
func (t *Tracing) Inject(c *Client) {
	c.On(Sending, t.onSending)
	c.On(Connected, t.onConnected)
	c.On(Disconnected, t.onFailure)
}

func (t *Tracing) onSending(ctx context.Context, c *Client, payload any) error {
	req := payload.(*wire.Request)
	_, span := t.tracer.Start(ctx, "relay.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL.String()),
			attribute.String("server.address", req.Host()),
			attribute.Int("server.port", req.Port()),
		),
	)
	c.SetExtra(extraSpan, span)
	return nil
}

func (t *Tracing) onConnected(_ context.Context, c *Client, payload any) error {
	span, ok := t.takeSpan(c)
	if !ok {
		return nil
	}
	resp := payload.(*wire.Response)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.Code()))
	if resp.IsError() {
		span.SetStatus(codes.Error, resp.Reason)
	}
	span.End()
	return nil
}

func (t *Tracing) onFailure(_ context.Context, c *Client, payload any) error {
	span, ok := t.takeSpan(c)
	if !ok {
		return nil
	}
	err := payload.(error)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	return nil
}

func (t *Tracing) takeSpan(c *Client) (trace.Span, bool) {
	v, ok := c.Extra(extraSpan)
	if !ok {
		return nil, false
	}
	c.DelExtra(extraSpan)
	span, ok := v.(trace.Span)
	return span, ok
}
