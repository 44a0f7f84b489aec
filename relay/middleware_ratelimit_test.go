package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimit_FailFast(t *testing.T) {
	c := quietClient()
	c.Use(NewRateLimit(RateLimitConfig{
		ConnectsPerSecond: 1,
		Burst:             1,
		WaitOnLimit:       false,
	}))
	rec := newRecorder(c)

	ctx := context.Background()

	c.Trigger(ctx, TriggerConnect, c.Request())
	_, vetoed := c.Extra(extraVeto)
	require.False(t, vetoed, "the burst token admits the first connect")

	c.Trigger(ctx, TriggerConnect, c.Request())

	err, vetoed := takeVeto(c)
	require.True(t, vetoed)
	assert.ErrorIs(t, err, ErrRateLimited)

	payload, ok := rec.last(TriggerDisconnected)
	require.True(t, ok)
	assert.ErrorIs(t, payload.(error), ErrRateLimited)
}

func TestRateLimit_WaitRespectsContext(t *testing.T) {
	c := quietClient()
	c.Use(NewRateLimit(RateLimitConfig{
		ConnectsPerSecond: 0.001, // the next token is ~17 minutes away
		Burst:             1,
		WaitOnLimit:       true,
	}))

	ctx := context.Background()
	c.Trigger(ctx, TriggerConnect, c.Request())
	_, vetoed := c.Extra(extraVeto)
	require.False(t, vetoed)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	c.Trigger(canceled, TriggerConnect, c.Request())

	_, vetoed = takeVeto(c)
	assert.True(t, vetoed, "an expired context vetoes instead of blocking forever")
}

func TestRateLimit_RespectsEarlierVeto(t *testing.T) {
	c := quietClient()
	c.Use(NewRateLimit(RateLimitConfig{ConnectsPerSecond: 1, Burst: 1}))

	vetoConnect(c, ErrRateLimited)
	c.Trigger(context.Background(), TriggerConnect, c.Request())

	_, vetoed := takeVeto(c)
	assert.True(t, vetoed)
}

func TestNewRateLimit_BadConfig(t *testing.T) {
	assert.Panics(t, func() { NewRateLimit(RateLimitConfig{ConnectsPerSecond: 0}) })
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	assert.Equal(t, 100.0, cfg.ConnectsPerSecond)
	assert.Equal(t, 10, cfg.Burst)
	assert.True(t, cfg.WaitOnLimit)
}
