package relay

// Middleware bundles a set of callback registrations applied to a Client in
// one step. Middleware are plain constructed values injected explicitly;
// the package keeps no shared default instances. Applying the same
// middleware twice duplicates its registrations, mirroring On.
type Middleware interface {
	Inject(c *Client)
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(c *Client)

// Inject implements Middleware.
func (f MiddlewareFunc) Inject(c *Client) { f(c) }

// Extras keys used by the built-in middleware to coordinate within a flow.
// Gate middleware (Breaker, RateLimit) veto a connect by storing the
// rejection error under extraVeto before the Transport's connect callback
// runs, so gates must be installed before the Transport.
const (
	extraVeto         = "relay.connect.veto"
	extraCacheServed  = "relay.cache.served"
	extraSpan         = "relay.trace.span"
	extraMetricsStart = "relay.metrics.start"
	extraRetries      = "relay.retry.attempts"
	extraBackOff      = "relay.retry.backoff"
	extraBreakerDone  = "relay.breaker.done"
)

// vetoConnect marks the current connect flow as rejected.
func vetoConnect(c *Client, err error) {
	c.SetExtra(extraVeto, err)
}

// takeVeto consumes a pending veto, if any.
func takeVeto(c *Client) (error, bool) {
	v, ok := c.Extra(extraVeto)
	if !ok {
		return nil, false
	}
	c.DelExtra(extraVeto)
	err, _ := v.(error)
	return err, true
}
