package relay

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kite-labs/relay-go/wire"
)

// Callback is a side-effecting listener invoked for every matching trigger.
// A returned error (or a recovered panic) is re-dispatched through the
// Exception action; it never aborts delivery to sibling callbacks.
type Callback func(ctx context.Context, c *Client, payload any) error

// binding pairs one Action with one registered callback. The Client keeps
// bindings in registration order, which fixes dispatch order.
type binding struct {
	action Action
	fn     Callback
}

// Client is the stateful unit of the pipeline: it owns one in-flight
// Request, the action-matched callback registry, and an extras side-channel
// used by middleware to coordinate within a flow.
//
// A Client serves one logical request flow at a time; use Clone to give
// each concurrent flow its own copy.
type Client struct {
	mu       sync.RWMutex
	req      *wire.Request
	bindings []binding
	extras   map[string]any
	logger   zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for dispatch-level reporting, such as
// exceptions nobody registered for.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRequest sets the initial request.
func WithRequest(req *wire.Request) Option {
	return func(c *Client) { c.SetRequest(req) }
}

// New creates a Client holding an empty GET request and no callbacks.
func New(opts ...Option) *Client {
	c := &Client{
		req:    wire.EmptyRequest(),
		extras: make(map[string]any),
		logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request returns the live, mutable in-flight request. Never nil.
func (c *Client) Request() *wire.Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.req
}

// SetRequest replaces the in-flight request.
func (c *Client) SetRequest(req *wire.Request) {
	if req == nil {
		panic("relay: nil request")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.req = req
}

// On registers a callback under the given action. Registration never
// replaces: registering the same callback twice means it runs twice.
func (c *Client) On(action Action, fn Callback) *Client {
	if fn == nil {
		panic("relay: nil callback")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = append(c.bindings, binding{action: action, fn: fn})
	return c
}

// Use applies each middleware's registrations in order.
func (c *Client) Use(ms ...Middleware) *Client {
	for _, m := range ms {
		if m == nil {
			panic("relay: nil middleware")
		}
		m.Inject(c)
	}
	return c
}

// Connect starts a connection for the current request by triggering
// "connect". It returns immediately; outcomes are observed through
// registered callbacks only. The context bounds the socket round trip.
func (c *Client) Connect(ctx context.Context) {
	c.Trigger(ctx, TriggerConnect, c.Request())
}

// Trigger invokes, in registration order, every callback whose action
// matches the (name, payload) pair. A callback failure is re-dispatched as
// a single "exception" trigger carrying the error; failures of exception
// callbacks themselves are not re-dispatched but logged, so dispatch can
// never recurse indefinitely.
func (c *Client) Trigger(ctx context.Context, name string, payload any) {
	c.mu.RLock()
	snapshot := make([]binding, len(c.bindings))
	copy(snapshot, c.bindings)
	c.mu.RUnlock()

	matched := false
	for _, b := range snapshot {
		if !b.action.Matches(name, payload) {
			continue
		}
		matched = true

		err := invoke(ctx, c, b.fn, payload)
		if err == nil {
			continue
		}
		if name == TriggerException {
			cause, _ := payload.(error)
			c.logger.Error().
				Err(err).
				AnErr("cause", cause).
				Msg("exception callback failed")
			continue
		}
		c.Trigger(ctx, TriggerException, err)
	}

	if name == TriggerException && !matched {
		err, _ := payload.(error)
		c.logger.Error().Err(err).Msg("unhandled exception")
	}
}

// TriggerAction triggers using the action's primary name.
func (c *Client) TriggerAction(ctx context.Context, action Action, payload any) {
	c.Trigger(ctx, action.Name(), payload)
}

// invoke runs one callback, converting panics into errors so a misbehaving
// listener cannot take down the dispatching goroutine.
func invoke(ctx context.Context, c *Client, fn Callback, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("relay: callback panic: %v", r)
		}
	}()
	return fn(ctx, c, payload)
}

// Extra reads a value from the extras side-channel.
func (c *Client) Extra(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.extras[key]
	return v, ok
}

// SetExtra stores a value in the extras side-channel.
func (c *Client) SetExtra(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extras[key] = value
}

// DelExtra removes a key from the extras side-channel.
func (c *Client) DelExtra(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.extras, key)
}

// Clone returns a Client for an independent flow: the request is deeply
// copied, the callback registry is shallow-copied (same callbacks, separate
// binding list), and the extras are copied entry by entry.
func (c *Client) Clone() *Client {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Client{
		req:      c.req.Clone(),
		bindings: make([]binding, len(c.bindings)),
		extras:   make(map[string]any, len(c.extras)),
		logger:   c.logger,
	}
	copy(clone.bindings, c.bindings)
	for k, v := range c.extras {
		clone.extras[k] = v
	}
	return clone
}
