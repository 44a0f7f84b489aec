package relay

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kite-labs/relay-go/wire"
)

// disconnectedExact matches only the "disconnected" trigger itself, unlike
// the Disconnected superset action. Shared by middleware that would
// otherwise observe each failure twice through the aliases.
var disconnectedExact = NewAction(TriggerDisconnected).Accepting(isError)

// lifecycleBindings enumerates the pipeline triggers with their exact
// actions, in lifecycle order.
var lifecycleBindings = []struct {
	name   string
	action Action
}{
	{TriggerConnect, Connect},
	{TriggerSending, Sending},
	{TriggerSent, Sent},
	{TriggerNotSent, NotSent},
	{TriggerReceiving, Receiving},
	{TriggerReceived, Received},
	{TriggerNotReceived, NotReceived},
	{TriggerMalformed, Malformed},
	{TriggerDisconnected, disconnectedExact},
	{TriggerConnected, Connected},
	{TriggerException, Exception},
}

// Logging is a middleware that writes one structured log line per pipeline
// event.
type Logging struct {
	logger zerolog.Logger
}

// NewLogging creates the logging middleware.
func NewLogging(logger zerolog.Logger) *Logging {
	return &Logging{logger: logger}
}

// Inject implements Middleware.
func (l *Logging) Inject(c *Client) {
	for _, b := range lifecycleBindings {
		name := b.name
		c.On(b.action, func(_ context.Context, _ *Client, payload any) error {
			l.log(name, payload)
			return nil
		})
	}
}

func (l *Logging) log(name string, payload any) {
	ev := l.logger.Debug().Str("trigger", name)
	switch p := payload.(type) {
	case *wire.Request:
		ev = ev.Str("method", p.Method).Str("url", p.URL.String())
	case *wire.Response:
		ev = ev.Str("status", p.StatusCode).Int("body_bytes", len(p.Body))
	case error:
		ev = l.logger.Warn().Str("trigger", name).Err(p)
	case string:
		ev = ev.Int("raw_bytes", len(p))
	}
	ev.Msg("pipeline event")
}
