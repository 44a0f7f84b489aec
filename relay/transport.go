package relay

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/kite-labs/relay-go/wire"
)

// Transport is the primary middleware: it intercepts "connect", consults
// the configured Store before any socket work, and hands cache misses to
// the Engine. Its own "connected" callback stores fresh responses.
//
// The cache lookup happens synchronously on the triggering goroutine; only
// the socket round trip is spawned. A cache hit bypasses the engine
// entirely — no sending/sent/receiving events — and delivers the cached
// response through a single "connected" trigger. A response served from
// the cache is not stored again.
//
// Gate middleware (Breaker, RateLimit) must be installed before the
// Transport so their veto is visible when the connect callback runs.
type Transport struct {
	engine   *Engine
	store    Store
	coalesce bool
	group    singleflight.Group
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithEngine replaces the default Engine.
func WithEngine(e *Engine) TransportOption {
	return func(t *Transport) {
		if e == nil {
			panic("relay: nil engine")
		}
		t.engine = e
	}
}

// WithStore enables response caching on the given store.
func WithStore(s Store) TransportOption {
	return func(t *Transport) {
		if s == nil {
			panic("relay: nil store")
		}
		t.store = s
	}
}

// WithCoalescing collapses concurrent connects for the same request
// fingerprint into one socket exchange. Follower flights skip the socket
// stages and observe only the terminal connected/disconnected event.
func WithCoalescing() TransportOption {
	return func(t *Transport) { t.coalesce = true }
}

// NewTransport creates a Transport with a default Engine and no cache.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{engine: NewEngine()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Inject implements Middleware.
func (t *Transport) Inject(c *Client) {
	c.On(Connect, t.onConnect)
	c.On(Connected, t.onConnected)
}

// flight is the shared result of one coalesced socket exchange.
type flight struct {
	owner *Client
	resp  *wire.Response
}

func (t *Transport) onConnect(ctx context.Context, c *Client, payload any) error {
	if _, vetoed := takeVeto(c); vetoed {
		return nil
	}
	req := payload.(*wire.Request)

	if t.store != nil {
		if entry, ok := t.store.Find(ctx, req); ok {
			c.SetExtra(extraCacheServed, entry.Response)
			c.Trigger(ctx, TriggerConnected, entry.Response)
			return nil
		}
	}

	if !t.coalesce {
		t.engine.Run(ctx, c, req)
		return nil
	}

	key := req.Fingerprint()
	go func() {
		v, err, _ := t.group.Do(key, func() (any, error) {
			resp, err := t.engine.run(ctx, c, req)
			return &flight{owner: c, resp: resp}, err
		})

		fl, ok := v.(*flight)
		if !ok || fl.owner == c {
			// The leader's lifecycle events were already emitted by the engine.
			return
		}
		if err != nil {
			c.Trigger(ctx, TriggerDisconnected, err)
			return
		}
		c.Trigger(ctx, TriggerConnected, fl.resp)
	}()
	return nil
}

func (t *Transport) onConnected(ctx context.Context, c *Client, payload any) error {
	if t.store == nil {
		return nil
	}
	resp := payload.(*wire.Response)

	if served, ok := c.Extra(extraCacheServed); ok && served == any(resp) {
		c.DelExtra(extraCacheServed)
		return nil
	}
	return t.store.Cache(ctx, c.Request(), resp)
}
