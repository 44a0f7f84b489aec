package relay

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kite-labs/relay-go/wire"
)

// countingServer accepts connections until closed, counting them, and
// replies to each after an optional delay.
type countingServer struct {
	addr  string
	reply string
	delay time.Duration
	conns atomic.Int32
	wg    sync.WaitGroup
}

func newCountingServer(t *testing.T, reply string, delay time.Duration) *countingServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &countingServer{addr: ln.Addr().String(), reply: reply, delay: delay}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.conns.Add(1)
			s.wg.Add(1)
			go s.handle(conn)
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *countingServer) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil || line == "\r\n" {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	conn.Write([]byte(s.reply))
}

// connectAndWait triggers a connect and blocks until a terminal event.
func connectAndWait(t *testing.T, c *Client) {
	t.Helper()

	done := make(chan struct{}, 1)
	c.On(Disconnected.Or(Connected), func(_ context.Context, _ *Client, _ any) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	c.Connect(context.Background())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal event")
	}
}

func TestTransport_CacheHitBypassesSocket(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	req := mustRequest(t, "GET", "http://127.0.0.1:1/cached")
	require.NoError(t, store.Cache(ctx, req, okResponse("from cache")))

	c := quietClient(WithRequest(req.Clone()))
	rec := newRecorder(c)
	c.Use(NewTransport(WithEngine(newTestEngine()), WithStore(store)))

	// The port cannot be dialed; a hit must never touch the socket. The
	// lookup runs synchronously, so no waiting is needed either.
	c.Connect(ctx)

	assert.Equal(t, []string{TriggerConnect, TriggerConnected}, rec.names(),
		"a cache hit emits no socket-stage events")

	payload, ok := rec.last(TriggerConnected)
	require.True(t, ok)
	assert.Equal(t, []byte("from cache"), payload.(*wire.Response).Body)
}

func TestTransport_CacheServedResponseNotRestored(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	req := mustRequest(t, "GET", "http://127.0.0.1:1/cached")
	require.NoError(t, store.Cache(ctx, req, okResponse("hit")))

	c := quietClient(WithRequest(req.Clone()))
	c.Use(NewTransport(WithEngine(newTestEngine()), WithStore(store)))

	c.Connect(ctx)
	c.Connect(ctx)

	assert.Equal(t, 1, store.Len(), "serving from the cache must not grow it")
}

func TestTransport_FreshResponseIsCached(t *testing.T) {
	srv := newCountingServer(t, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nfresh", 0)
	store := NewMemoryStore()

	c := quietClient(WithRequest(mustRequest(t, "GET", "http://"+srv.addr+"/a")))
	c.Use(NewTransport(WithEngine(newTestEngine()), WithStore(store)))

	connectAndWait(t, c)

	require.Equal(t, 1, store.Len())
	entry, ok := store.Find(context.Background(), c.Request())
	require.True(t, ok)
	assert.Equal(t, []byte("fresh"), entry.Response.Body)
}

func TestTransport_ExpiryForcesReconnect(t *testing.T) {
	srv := newCountingServer(t, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nfresh", 0)
	clk := clock.NewMock()
	store := NewMemoryStore(WithClock(clk), WithTTL(time.Minute))

	c := quietClient(WithRequest(mustRequest(t, "GET", "http://"+srv.addr+"/a")))
	c.Use(NewTransport(WithEngine(newTestEngine()), WithStore(store)))

	connectAndWait(t, c)
	require.Equal(t, int32(1), srv.conns.Load())

	// Within the TTL the cache answers; the server sees nothing.
	c.Connect(context.Background())
	assert.Equal(t, int32(1), srv.conns.Load())

	// Past the TTL the entry is evicted and the socket is used again.
	clk.Add(2 * time.Minute)
	connectAndWait(t, c)
	assert.Equal(t, int32(2), srv.conns.Load())
	assert.Equal(t, 1, store.Len(), "the refreshed response replaced the stale entry")
}

func TestTransport_VetoSkipsConnect(t *testing.T) {
	rejected := errors.New("gate says no")

	gate := MiddlewareFunc(func(c *Client) {
		c.On(Connect, func(ctx context.Context, c *Client, _ any) error {
			vetoConnect(c, rejected)
			c.Trigger(ctx, TriggerDisconnected, rejected)
			return nil
		})
	})

	srv := newCountingServer(t, "HTTP/1.1 200 OK\r\n\r\n", 0)
	c := quietClient(WithRequest(mustRequest(t, "GET", "http://"+srv.addr+"/a")))
	rec := newRecorder(c)
	c.Use(gate, NewTransport(WithEngine(newTestEngine())))

	c.Connect(context.Background())

	assert.Equal(t, []string{TriggerConnect, TriggerDisconnected}, rec.names())
	assert.Equal(t, int32(0), srv.conns.Load(), "a vetoed connect must not dial")

	_, pending := c.Extra(extraVeto)
	assert.False(t, pending, "the veto is consumed by the transport")
}

func TestTransport_CoalescingSharesOneExchange(t *testing.T) {
	const flights = 5

	srv := newCountingServer(t, "HTTP/1.1 200 OK\r\nContent-Length: 6\r\n\r\nshared", 500*time.Millisecond)

	base := quietClient(WithRequest(mustRequest(t, "GET", "http://"+srv.addr+"/a")))
	base.Use(NewTransport(WithEngine(newTestEngine()), WithCoalescing()))

	var (
		wg        sync.WaitGroup
		connected atomic.Int32
		bodies    sync.Map
	)
	for i := 0; i < flights; i++ {
		c := base.Clone()
		wg.Add(1)
		c.On(Connected, func(_ context.Context, _ *Client, payload any) error {
			connected.Add(1)
			bodies.Store(string(payload.(*wire.Response).Body), true)
			wg.Done()
			return nil
		})
		c.Connect(context.Background())
	}

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("not every flight connected")
	}

	assert.Equal(t, int32(flights), connected.Load())
	assert.Equal(t, int32(1), srv.conns.Load(), "concurrent identical connects share one exchange")

	_, ok := bodies.Load("shared")
	assert.True(t, ok)
}
