package relay

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited is the payload of the "disconnected" event emitted when a
// connect is rejected by the RateLimit middleware in fail-fast mode.
var ErrRateLimited = errors.New("relay: rate limit exceeded")

// RateLimitConfig configures client-level connect rate limiting.
type RateLimitConfig struct {
	// ConnectsPerSecond is the maximum sustained connect rate.
	ConnectsPerSecond float64

	// Burst is the number of connects allowed in a burst above the rate.
	Burst int

	// WaitOnLimit selects the behavior at the limit. If true, Connect
	// blocks for a token (respecting the context deadline); if false, the
	// connect is vetoed immediately with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig allows 100 connects per second with a burst of 10,
// waiting at the limit.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{ConnectsPerSecond: 100, Burst: 10, WaitOnLimit: true}
}

// RateLimit is a gate middleware bounding the connect rate.
// Install it before the Transport.
type RateLimit struct {
	limiter *rate.Limiter
	wait    bool
}

// NewRateLimit creates the rate limit middleware.
func NewRateLimit(cfg RateLimitConfig) *RateLimit {
	if cfg.ConnectsPerSecond <= 0 {
		panic("relay: rate limit needs a positive rate")
	}
	return &RateLimit{
		limiter: rate.NewLimiter(rate.Limit(cfg.ConnectsPerSecond), cfg.Burst),
		wait:    cfg.WaitOnLimit,
	}
}

// Inject implements Middleware.
func (r *RateLimit) Inject(c *Client) {
	c.On(Connect, r.onConnect)
}

func (r *RateLimit) onConnect(ctx context.Context, c *Client, _ any) error {
	if _, ok := c.Extra(extraVeto); ok {
		return nil
	}

	if r.wait {
		if err := r.limiter.Wait(ctx); err != nil {
			vetoConnect(c, err)
			c.Trigger(ctx, TriggerDisconnected, err)
		}
		return nil
	}

	if !r.limiter.Allow() {
		vetoConnect(c, ErrRateLimited)
		c.Trigger(ctx, TriggerDisconnected, ErrRateLimited)
	}
	return nil
}
