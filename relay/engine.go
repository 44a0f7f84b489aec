package relay

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kite-labs/relay-go/wire"
)

// Engine performs one raw-socket HTTP/1.1 round trip per connection,
// emitting the lifecycle triggers through the owning Client's registry.
// Run spawns a goroutine per connection so the dispatching goroutine
// returns immediately.
//
// The emitted sequence for a success is exactly:
//
//	sending -> sent -> receiving -> received -> connected
//
// A failure at any stage emits exactly one terminal failure trigger and
// performs no further steps:
//
//	dial error  -> disconnected
//	write error -> not-sent
//	read error  -> not-received
//	parse error -> malformed
type Engine struct {
	dialer net.Dialer
	logger zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDialTimeout bounds the TCP connect. Zero means no dial timeout;
// the Connect context's deadline still applies to the whole round trip.
func WithDialTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.dialer.Timeout = d }
}

// WithEngineLogger sets the logger for per-connection debug output.
func WithEngineLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an Engine with no dial timeout and stderr debug logging.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts the round trip for req on a new goroutine. The context's
// deadline, if any, bounds the socket I/O; cancellation is the only way to
// interrupt a peer that never responds.
func (e *Engine) Run(ctx context.Context, c *Client, req *wire.Request) {
	go e.run(ctx, c, req)
}

// run is the synchronous round trip body. It returns the terminal response
// or error in addition to emitting them as triggers, so coalesced flights
// can share one exchange.
func (e *Engine) run(ctx context.Context, c *Client, req *wire.Request) (*wire.Response, error) {
	log := e.logger.With().
		Str("conn_id", uuid.NewString()).
		Str("addr", req.Addr()).
		Logger()

	// Listeners get one last chance to mutate the request before the
	// implicit headers are filled in and the bytes hit the wire.
	c.Trigger(ctx, TriggerSending, req)
	req.FillDefaults(time.Now())

	conn, err := e.dialer.DialContext(ctx, "tcp", req.Addr())
	if err != nil {
		log.Debug().Err(err).Msg("dial failed")
		c.Trigger(ctx, TriggerDisconnected, err)
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			log.Debug().Err(err).Msg("setting deadline failed")
		}
	}

	// Wire form plus an explicit trailing CRLF.
	text := req.String() + "\r\n"
	if _, err := io.WriteString(conn, text); err != nil {
		log.Debug().Err(err).Msg("write failed")
		c.Trigger(ctx, TriggerNotSent, err)
		return nil, err
	}
	c.Trigger(ctx, TriggerSent, text)

	raw, err := io.ReadAll(conn)
	if err != nil {
		log.Debug().Err(err).Msg("read failed")
		c.Trigger(ctx, TriggerNotReceived, err)
		return nil, err
	}
	if len(raw) == 0 {
		err := fmt.Errorf("relay: connection closed with no response: %w", io.ErrUnexpectedEOF)
		log.Debug().Msg("peer closed before responding")
		c.Trigger(ctx, TriggerNotReceived, err)
		return nil, err
	}
	c.Trigger(ctx, TriggerReceiving, string(raw))

	resp, err := wire.ParseResponse(string(raw))
	if err != nil {
		err = fmt.Errorf("relay: parsing response: %w", err)
		log.Debug().Err(err).Msg("parse failed")
		c.Trigger(ctx, TriggerMalformed, err)
		return nil, err
	}

	log.Debug().Str("status", resp.StatusCode).Msg("connected")
	c.Trigger(ctx, TriggerReceived, resp)
	c.Trigger(ctx, TriggerConnected, resp)
	return resp, nil
}
