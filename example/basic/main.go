// Command basic connects a fully assembled relay pipeline to a URL given on
// the command line: response caching on a local file, a circuit breaker,
// retries with backoff, Prometheus counters, stdout traces, and structured
// logs for every lifecycle event.
//
// Usage:
//
//	go run . http://example.com/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kite-labs/relay-go/relay"
	"github.com/kite-labs/relay-go/wire"
)

const metricsAddr = ":2112"

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <url>\n", os.Args[0])
		os.Exit(2)
	}

	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		logger.Fatal().Err(err).Msg("creating trace exporter")
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	defer tp.Shutdown(context.Background())

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		logger.Info().Str("addr", metricsAddr).Msg("serving prometheus metrics")
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	req, err := wire.NewRequest("GET", os.Args[1])
	if err != nil {
		logger.Fatal().Err(err).Msg("building request")
	}

	store := relay.NewFileStore("relay-cache.json", relay.WithTTL(5*time.Minute))

	done := make(chan struct{})
	client := relay.New(
		relay.WithLogger(logger),
		relay.WithRequest(req),
	).Use(
		relay.NewLogging(logger),
		relay.NewMetrics(prometheus.DefaultRegisterer),
		relay.NewTracing(tp),
		relay.NewRetry(3),
		relay.NewBreaker(gobreaker.Settings{Name: "basic"}),
		relay.NewRateLimit(relay.DefaultRateLimitConfig()),
		relay.NewTransport(relay.WithStore(store)),
	).On(relay.Connected, func(_ context.Context, _ *relay.Client, payload any) error {
		resp := payload.(*wire.Response)
		fmt.Printf("\n%s %s\n%s", resp.StatusCode, resp.Reason, resp.Body)
		close(done)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client.Connect(ctx)

	select {
	case <-done:
	case <-ctx.Done():
		logger.Error().Msg("no response before the deadline")
		os.Exit(1)
	}
}
