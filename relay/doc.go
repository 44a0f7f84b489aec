// Package relay provides an event-driven HTTP/1.1 connection pipeline:
// a Client dispatches named triggers through a pattern-matched action
// registry, a socket Engine performs the connection round trip on its own
// goroutine while emitting lifecycle events, and pluggable cache stores
// short-circuit connections for requests with a valid cached response.
//
// # Features
//
//   - Typed, pattern-matched action dispatch with per-callback failure isolation
//   - Raw-socket HTTP/1.1 engine with a strict event lifecycle
//     (sending, sent, receiving, received, connected — or their failure variants)
//   - Response caching with composable validators and in-memory, file,
//     Redis, and SQL backed stores
//   - Opt-in middleware: logging, Prometheus metrics, OpenTelemetry tracing,
//     retries, circuit breaking, rate limiting, request coalescing
//
// # Quick Start
//
//	client := relay.New()
//	client.Use(relay.NewTransport(relay.WithStore(relay.NewMemoryStore())))
//
//	client.On(relay.Connected, func(ctx context.Context, c *relay.Client, payload any) error {
//	    resp := payload.(*wire.Response)
//	    fmt.Println("status:", resp.StatusCode)
//	    return nil
//	})
//	client.On(relay.Disconnected, func(ctx context.Context, c *relay.Client, payload any) error {
//	    log.Println("connect failed:", payload.(error))
//	    return nil
//	})
//
//	req, _ := wire.NewRequest("GET", "http://example.com:80/")
//	client.SetRequest(req)
//	client.Connect(context.Background())
//
// Connect returns immediately; the round trip runs on a dedicated goroutine
// and every outcome is observed through registered callbacks. Nothing is
// ever returned (or thrown) to the caller of Connect.
//
// # Lifecycle
//
// For a successful connection the emitted triggers are exactly, in order:
//
//	sending -> sent -> receiving -> received -> connected
//
// A failure at any stage emits exactly one terminal failure trigger
// (disconnected, not-sent, not-received, or malformed) and stops the
// pipeline. The Disconnected action matches all four failure names, so a
// single registration observes every way a connection can fail.
//
// # Caching
//
// A Transport configured with a Store consults it synchronously before
// opening a socket. A valid, unexpired entry short-circuits the engine
// entirely: the cached response is delivered through a single "connected"
// trigger with no sending/sent/receiving events. Fresh responses are stored
// by the Transport's own "connected" callback; responses served from the
// cache are not re-stored.
//
// # Concurrency
//
// One Client is meant to serve one logical request flow at a time. The
// registry is guarded for the engine goroutine's benefit, but concurrent
// flows should each work on their own Clone, which deep-copies the request
// and shares the registered callbacks.
package relay
