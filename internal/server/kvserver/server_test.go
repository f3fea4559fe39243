// Package kvserver provides the TCP wire protocol server.
package kvserver

import (
	"context"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/noxkv/nox-go/internal/pubsub"
	"github.com/noxkv/nox-go/internal/resp"
	"github.com/noxkv/nox-go/internal/storage/memory"
)

// ============================================================
// Test harness
// ============================================================

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownGrace = 2 * time.Second
	if mutate != nil {
		mutate(cfg)
	}

	store := memory.New()
	t.Cleanup(store.Close)

	srv := New(cfg, store, pubsub.NewRegistry())

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ln) }()

	// Addr is nil until Serve records the listener; wait so dial can
	// use it.
	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("Serve() did not start")
		}
		time.Sleep(time.Millisecond)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		if err := <-serveDone; err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	})

	return srv
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	rc   *resp.Conn
}

func dial(t *testing.T, srv *Server) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &testClient{t: t, conn: conn, rc: resp.NewConn(conn)}
}

func (c *testClient) send(name string, args ...string) {
	c.t.Helper()

	raw := make([][]byte, len(args))
	for i, a := range args {
		raw[i] = []byte(a)
	}
	if err := c.rc.WriteFrame(resp.Command(name, raw...)); err != nil {
		c.t.Fatalf("WriteFrame() error = %v", err)
	}
	if err := c.rc.Flush(); err != nil {
		c.t.Fatalf("Flush() error = %v", err)
	}
}

func (c *testClient) recv() resp.Frame {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	f, err := c.rc.ReadFrame()
	if err != nil {
		c.t.Fatalf("ReadFrame() error = %v", err)
	}
	return f
}

func (c *testClient) roundTrip(name string, args ...string) resp.Frame {
	c.t.Helper()
	c.send(name, args...)
	return c.recv()
}

func wantFrame(t *testing.T, got, want resp.Frame) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("frame = %#v, want %#v", got, want)
	}
}

func wantErrorContaining(t *testing.T, got resp.Frame, sub string) {
	t.Helper()
	e, ok := got.(resp.Error)
	if !ok {
		t.Fatalf("frame = %#v, want Error", got)
	}
	if !strings.Contains(string(e), sub) {
		t.Errorf("error = %q, want substring %q", string(e), sub)
	}
}

// ============================================================
// Basic commands
// ============================================================

func TestServer_Ping(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	wantFrame(t, c.roundTrip("PING"), resp.Simple("PONG"))
	wantFrame(t, c.roundTrip("PING", "hello"), resp.Bulk("hello"))
}

func TestServer_SetGet(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	wantFrame(t, c.roundTrip("SET", "key", "value"), resp.Simple("OK"))
	wantFrame(t, c.roundTrip("GET", "key"), resp.Bulk("value"))
}

func TestServer_GetMissingReturnsNull(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	wantFrame(t, c.roundTrip("GET", "absent"), resp.Null{})
}

func TestServer_SetWithExpiry(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	wantFrame(t, c.roundTrip("SET", "key", "value", "PX", "50"), resp.Simple("OK"))
	wantFrame(t, c.roundTrip("GET", "key"), resp.Bulk("value"))

	time.Sleep(120 * time.Millisecond)

	wantFrame(t, c.roundTrip("GET", "key"), resp.Null{})
}

func TestServer_OverwriteClearsExpiry(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	wantFrame(t, c.roundTrip("SET", "key", "old", "PX", "50"), resp.Simple("OK"))
	wantFrame(t, c.roundTrip("SET", "key", "new"), resp.Simple("OK"))

	time.Sleep(120 * time.Millisecond)

	wantFrame(t, c.roundTrip("GET", "key"), resp.Bulk("new"))
}

func TestServer_Del(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	c.roundTrip("SET", "a", "1")
	c.roundTrip("SET", "b", "2")

	wantFrame(t, c.roundTrip("DEL", "a", "b", "c"), resp.Integer(2))
	wantFrame(t, c.roundTrip("GET", "a"), resp.Null{})
}

func TestServer_UnknownCommand(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	wantErrorContaining(t, c.roundTrip("FLUSHALL"), "unknown command 'FLUSHALL'")

	// The connection stays usable after a command error.
	wantFrame(t, c.roundTrip("PING"), resp.Simple("PONG"))
}

func TestServer_WrongArgCountKeepsConnection(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	wantErrorContaining(t, c.roundTrip("GET"), "wrong number of arguments")
	wantFrame(t, c.roundTrip("PING"), resp.Simple("PONG"))
}

func TestServer_Quit(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	wantFrame(t, c.roundTrip("QUIT"), resp.Simple("OK"))

	// The server closes its side after the reply.
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.rc.ReadFrame(); err == nil {
		t.Error("ReadFrame() after QUIT error = nil, want closed connection")
	}
}

func TestServer_Pipelining(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	c.send("SET", "key", "value")
	c.send("GET", "key")
	c.send("PING")

	wantFrame(t, c.recv(), resp.Simple("OK"))
	wantFrame(t, c.recv(), resp.Bulk("value"))
	wantFrame(t, c.recv(), resp.Simple("PONG"))
}

// ============================================================
// Pub/sub
// ============================================================

func TestServer_PublishNoSubscribers(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	wantFrame(t, c.roundTrip("PUBLISH", "nobody", "hello"), resp.Integer(0))
}

func TestServer_SubscribePublish(t *testing.T) {
	srv := newTestServer(t, nil)
	sub := dial(t, srv)
	pub := dial(t, srv)

	wantFrame(t, sub.roundTrip("SUBSCRIBE", "news"), resp.Array{
		resp.Bulk("subscribe"), resp.Bulk("news"), resp.Integer(1),
	})

	wantFrame(t, pub.roundTrip("PUBLISH", "news", "hello"), resp.Integer(1))

	wantFrame(t, sub.recv(), resp.Array{
		resp.Bulk("message"), resp.Bulk("news"), resp.Bulk("hello"),
	})
}

func TestServer_SubscribeMultipleChannels(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	c.send("SUBSCRIBE", "a", "b")

	wantFrame(t, c.recv(), resp.Array{
		resp.Bulk("subscribe"), resp.Bulk("a"), resp.Integer(1),
	})
	wantFrame(t, c.recv(), resp.Array{
		resp.Bulk("subscribe"), resp.Bulk("b"), resp.Integer(2),
	})
}

func TestServer_SubscriberModeGating(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	c.roundTrip("SUBSCRIBE", "news")

	wantErrorContaining(t, c.roundTrip("GET", "key"), "subscriber mode")

	// The connection stays open and can still unsubscribe and ping.
	wantFrame(t, c.roundTrip("UNSUBSCRIBE", "news"), resp.Array{
		resp.Bulk("unsubscribe"), resp.Bulk("news"), resp.Integer(0),
	})
	wantFrame(t, c.roundTrip("PING"), resp.Simple("PONG"))
}

func TestServer_UnsubscribeAll(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	c.roundTrip("SUBSCRIBE", "a")
	c.roundTrip("SUBSCRIBE", "b")

	c.send("UNSUBSCRIBE")

	remaining := map[string]bool{"a": true, "b": true}
	for i := 0; i < 2; i++ {
		f := c.recv()
		arr, ok := f.(resp.Array)
		if !ok || len(arr) != 3 {
			t.Fatalf("frame = %#v, want 3-element Array", f)
		}
		if got := string(arr[0].(resp.Bulk)); got != "unsubscribe" {
			t.Errorf("reply kind = %q, want unsubscribe", got)
		}
		name := string(arr[1].(resp.Bulk))
		if !remaining[name] {
			t.Errorf("unexpected channel %q", name)
		}
		delete(remaining, name)
	}
	if len(remaining) != 0 {
		t.Errorf("channels not unsubscribed: %v", remaining)
	}
}

func TestServer_UnsubscribeNothing(t *testing.T) {
	srv := newTestServer(t, nil)
	c := dial(t, srv)

	c.roundTrip("SUBSCRIBE", "news")

	wantFrame(t, c.roundTrip("UNSUBSCRIBE", "news"), resp.Array{
		resp.Bulk("unsubscribe"), resp.Bulk("news"), resp.Integer(0),
	})
	wantFrame(t, c.roundTrip("UNSUBSCRIBE"), resp.Array{
		resp.Bulk("unsubscribe"), resp.Null{}, resp.Integer(0),
	})
}

func TestServer_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	srv := newTestServer(t, func(cfg *Config) {
		cfg.SinkBuffer = 1
	})
	sub := dial(t, srv)
	pub := dial(t, srv)

	sub.roundTrip("SUBSCRIBE", "firehose")

	// The subscriber never reads; every publish must still return
	// promptly.
	for i := 0; i < 100; i++ {
		f := pub.roundTrip("PUBLISH", "firehose", "payload")
		if _, ok := f.(resp.Integer); !ok {
			t.Fatalf("PUBLISH reply = %#v, want Integer", f)
		}
	}
}

// ============================================================
// Connection management
// ============================================================

func TestServer_MaxConnections(t *testing.T) {
	srv := newTestServer(t, func(cfg *Config) {
		cfg.MaxConnections = 1
	})

	first := dial(t, srv)
	wantFrame(t, first.roundTrip("PING"), resp.Simple("PONG"))

	// The second connection sits in the listen backlog until the first
	// one releases its slot.
	second := dial(t, srv)
	second.send("PING")

	time.Sleep(100 * time.Millisecond)
	first.conn.Close()

	wantFrame(t, second.recv(), resp.Simple("PONG"))
}

func TestServer_RateLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *Config) {
		cfg.RateLimitEnabled = true
		cfg.RatePerSecond = 1
		cfg.RateBurst = 1
	})
	c := dial(t, srv)

	wantFrame(t, c.roundTrip("PING"), resp.Simple("PONG"))
	wantErrorContaining(t, c.roundTrip("PING"), "rate limit")
}

func TestServer_Shutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownGrace = 2 * time.Second

	store := memory.New()
	defer store.Close()

	srv := New(cfg, store, pubsub.NewRegistry())

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	rc := resp.NewConn(conn)
	if err := rc.WriteFrame(resp.Command("PING")); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if err := rc.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if _, err := rc.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-serveDone; err != nil {
		t.Errorf("Serve() error = %v", err)
	}

	// No new connections after shutdown.
	if c2, err := net.Dial("tcp", ln.Addr().String()); err == nil {
		c2.Close()
		t.Error("Dial() after shutdown succeeded, want refused")
	}
}
