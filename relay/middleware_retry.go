package relay

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Retry is an OPT-IN middleware that re-triggers "connect" after a failed
// connection, with exponential backoff between attempts. The pipeline core
// never retries on its own; nothing installs this middleware by default.
//
// The attempt counter lives in the client's extras and resets on success,
// so a Client reused for sequential flows starts each flow fresh.
type Retry struct {
	maxRetries int
	newBackOff func() backoff.BackOff
}

// RetryOption configures a Retry middleware.
type RetryOption func(*Retry)

// WithBackOff replaces the default exponential backoff factory.
func WithBackOff(factory func() backoff.BackOff) RetryOption {
	return func(r *Retry) { r.newBackOff = factory }
}

// NewRetry creates a retry middleware allowing up to maxRetries re-connects
// per flow.
func NewRetry(maxRetries int, opts ...RetryOption) *Retry {
	if maxRetries < 1 {
		panic("relay: retry needs at least one attempt")
	}
	r := &Retry{
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 100 * time.Millisecond
			return bo
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Inject implements Middleware.
func (r *Retry) Inject(c *Client) {
	c.On(Disconnected, r.onFailure)
	c.On(Connected, func(_ context.Context, c *Client, _ any) error {
		c.DelExtra(extraRetries)
		c.DelExtra(extraBackOff)
		return nil
	})
}

func (r *Retry) onFailure(ctx context.Context, c *Client, _ any) error {
	attempts, _ := c.Extra(extraRetries)
	n, _ := attempts.(int)
	if n >= r.maxRetries {
		c.DelExtra(extraRetries)
		c.DelExtra(extraBackOff)
		return nil
	}

	v, ok := c.Extra(extraBackOff)
	bo, _ := v.(backoff.BackOff)
	if !ok || bo == nil {
		bo = r.newBackOff()
		c.SetExtra(extraBackOff, bo)
	}

	delay := bo.NextBackOff()
	if delay == backoff.Stop {
		c.DelExtra(extraRetries)
		c.DelExtra(extraBackOff)
		return nil
	}
	c.SetExtra(extraRetries, n+1)

	time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		c.Connect(ctx)
	})
	return nil
}
