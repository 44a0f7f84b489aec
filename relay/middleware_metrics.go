package relay

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is a middleware exposing Prometheus counters for connection
// outcomes and cache results, plus optional OpenTelemetry instruments for
// connection duration and in-flight connections. Install it before the
// Transport so cache-served responses are still marked when its "connected"
// callback runs.
type Metrics struct {
	connections *prometheus.CounterVec
	cacheServed prometheus.Counter

	// Set only when a meter provider is configured. The histogram and
	// counter bracket the socket stages: sending to the terminal event.
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
}

// MetricsOption configures a Metrics middleware.
type MetricsOption func(*Metrics)

// WithMeterProvider additionally records OpenTelemetry instruments on the
// given provider: a connection-duration histogram and an in-flight
// up-down counter, both measured from "sending" to the terminal event.
// Cache-served connections skip "sending" and are not measured.
func WithMeterProvider(mp metric.MeterProvider) MetricsOption {
	return func(m *Metrics) {
		meter := mp.Meter(scope)

		var err error
		m.duration, err = meter.Float64Histogram(
			"relay.client.connection.duration",
			metric.WithDescription("Time from first socket work to the terminal event in seconds"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(
				0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
			),
		)
		if err != nil {
			panic(err)
		}
		m.inflight, err = meter.Int64UpDownCounter(
			"relay.client.active_connections",
			metric.WithDescription("Number of in-flight connections"),
			metric.WithUnit("{connection}"),
		)
		if err != nil {
			panic(err)
		}
	}
}

// NewMetrics creates the metrics middleware, registering its Prometheus
// collectors on reg. Pass prometheus.DefaultRegisterer for the
// process-global registry.
func NewMetrics(reg prometheus.Registerer, opts ...MetricsOption) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		connections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Connections by terminal outcome.",
		}, []string{"outcome"}),
		cacheServed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_cache_served_total",
			Help: "Connections satisfied from the response cache.",
		}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Inject implements Middleware.
func (m *Metrics) Inject(c *Client) {
	if m.duration != nil {
		c.On(Sending, func(ctx context.Context, c *Client, _ any) error {
			m.inflight.Add(ctx, 1)
			c.SetExtra(extraMetricsStart, time.Now())
			return nil
		})
	}

	terminal := []struct {
		outcome string
		action  Action
	}{
		{TriggerConnected, Connected},
		{TriggerDisconnected, disconnectedExact},
		{TriggerNotSent, NotSent},
		{TriggerNotReceived, NotReceived},
		{TriggerMalformed, Malformed},
	}
	for _, t := range terminal {
		outcome := t.outcome
		c.On(t.action, func(ctx context.Context, c *Client, _ any) error {
			m.connections.WithLabelValues(outcome).Inc()
			if start, ok := m.takeStart(c); ok {
				m.inflight.Add(ctx, -1)
				m.duration.Record(ctx, time.Since(start).Seconds(),
					metric.WithAttributes(attribute.String("outcome", outcome)))
			}
			return nil
		})
	}

	c.On(Connected, func(_ context.Context, c *Client, payload any) error {
		if served, ok := c.Extra(extraCacheServed); ok && served == payload {
			m.cacheServed.Inc()
		}
		return nil
	})
}

// takeStart consumes the flow's start instant, if the sending stage ran.
func (m *Metrics) takeStart(c *Client) (time.Time, bool) {
	v, ok := c.Extra(extraMetricsStart)
	if !ok {
		return time.Time{}, false
	}
	c.DelExtra(extraMetricsStart)
	start, ok := v.(time.Time)
	return start, ok
}
