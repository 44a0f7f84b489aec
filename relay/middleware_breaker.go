package relay

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

// Breaker is a gate middleware wrapping connects in a circuit breaker.
// While the circuit is open, connects are vetoed before any socket work
// and surface as a "disconnected" event wrapping gobreaker.ErrOpenState.
//
// Install it before the Transport.
type Breaker struct {
	cb *gobreaker.TwoStepCircuitBreaker[any]
}

// NewBreaker creates the breaker middleware from gobreaker settings.
func NewBreaker(st gobreaker.Settings) *Breaker {
	return &Breaker{cb: gobreaker.NewTwoStepCircuitBreaker[any](st)}
}

// Inject implements Middleware.
func (b *Breaker) Inject(c *Client) {
	c.On(Connect, b.onConnect)
	c.On(Connected, b.onConnected)
	c.On(Disconnected, b.onFailure)
}

func (b *Breaker) onConnect(ctx context.Context, c *Client, _ any) error {
	if _, ok := c.Extra(extraVeto); ok {
		return nil // already vetoed by an earlier gate
	}

	done, err := b.cb.Allow()
	if err != nil {
		rejected := fmt.Errorf("relay: connect rejected: %w", err)
		vetoConnect(c, rejected)
		c.Trigger(ctx, TriggerDisconnected, rejected)
		return nil
	}
	c.SetExtra(extraBreakerDone, done)
	return nil
}

func (b *Breaker) onConnected(_ context.Context, c *Client, _ any) error {
	if done, ok := b.takeDone(c); ok {
		done(nil)
	}
	return nil
}

func (b *Breaker) onFailure(_ context.Context, c *Client, payload any) error {
	if done, ok := b.takeDone(c); ok {
		failure, _ := payload.(error)
		done(failure)
	}
	return nil
}

func (b *Breaker) takeDone(c *Client) (func(error), bool) {
	v, ok := c.Extra(extraBreakerDone)
	if !ok {
		return nil, false
	}
	c.DelExtra(extraBreakerDone)
	done, ok := v.(func(error))
	return done, ok
}
