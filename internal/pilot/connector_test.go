package pilot

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pagepilot/pagectl/internal/dispatch"
	"github.com/pagepilot/pagectl/internal/protocol/session"
)

// fastBackoff keeps reconnect tests quick without changing the sequence shape.
func fastBackoff() session.Config {
	return session.Config{
		ConnectTimeout: time.Second,
		Backoff: session.BackoffConfig{
			BaseDelay:  5 * time.Millisecond,
			Multiplier: 2.0,
			MaxDelay:   20 * time.Millisecond,
		},
	}
}

type testDirector struct {
	ln net.Listener

	mu    sync.Mutex
	conns []net.Conn
}

func startTestDirector(t *testing.T) *testDirector {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	td := &testDirector{ln: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			td.mu.Lock()
			td.conns = append(td.conns, conn)
			td.mu.Unlock()
		}
	}()
	t.Cleanup(td.close)
	return td
}

func (td *testDirector) close() {
	_ = td.ln.Close()
	td.mu.Lock()
	defer td.mu.Unlock()
	for _, c := range td.conns {
		_ = c.Close()
	}
}

func (td *testDirector) waitConn(t *testing.T, n int) net.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		td.mu.Lock()
		if len(td.conns) >= n {
			conn := td.conns[n-1]
			td.mu.Unlock()
			return conn
		}
		td.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connection %d never arrived", n)
	return nil
}

func startConnector(t *testing.T, addr string, d *dispatch.Dispatcher) *Connector {
	t.Helper()
	c, err := NewConnector(Config{
		Name:    "pilot-test",
		Address: addr,
		APIKey:  "abc",
		Session: fastBackoff(),
	}, d)
	if err != nil {
		t.Fatalf("new connector: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("connector did not stop on cancellation")
		}
	})
	return c
}

func waitConnected(t *testing.T, c *Connector, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Connected() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connector never reached connected=%v", want)
}

func TestConnectorDispatchesInstructions(t *testing.T) {
	td := startTestDirector(t)
	frames := make(chan map[string]any, 4)
	d := dispatch.New()
	d.Subscribe(func(msg map[string]any, connID string) {
		frames <- msg
	})

	c := startConnector(t, td.ln.Addr().String(), d)
	waitConnected(t, c, true)
	server := td.waitConn(t, 1)

	if _, err := server.Write([]byte("{\"text\":\"go\",\"image\":null,\"timestamp\":\"2024-01-01T00:00:00.000Z\"}\n")); err != nil {
		t.Fatalf("server write: %v", err)
	}

	select {
	case msg := <-frames:
		if msg["text"] != "go" {
			t.Fatalf("unexpected instruction: %#v", msg)
		}
		if v, ok := msg["image"]; !ok || v != nil {
			t.Fatalf("expected image null passthrough: %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("instruction never dispatched")
	}
}

func TestSendInjectsAPIKey(t *testing.T) {
	td := startTestDirector(t)
	c := startConnector(t, td.ln.Addr().String(), dispatch.New())
	waitConnected(t, c, true)
	server := td.waitConn(t, 1)

	fields := map[string]any{"notes": "clicked start", "x": 4}
	if err := c.Send(fields); err != nil {
		t.Fatalf("send: %v", err)
	}

	line, err := bufio.NewReader(server).ReadBytes('\n')
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(line, &msg); err != nil {
		t.Fatalf("frame not JSON: %v", err)
	}
	if msg["api_key"] != "abc" || msg["notes"] != "clicked start" {
		t.Fatalf("unexpected frame: %#v", msg)
	}
	if _, ok := fields["api_key"]; ok {
		t.Fatal("send must not mutate the caller's map")
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	c, err := NewConnector(Config{Address: "127.0.0.1:1", Session: fastBackoff()}, nil)
	if err != nil {
		t.Fatalf("new connector: %v", err)
	}
	if err := c.Send(map[string]any{"notes": "x"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnectorReconnectsAfterLostSession(t *testing.T) {
	td := startTestDirector(t)
	var mu sync.Mutex
	var connects, disconnects int
	d := dispatch.New()
	d.OnConnect(func(connID string) {
		mu.Lock()
		connects++
		mu.Unlock()
	})
	d.OnDisconnect(func(connID string) {
		mu.Lock()
		disconnects++
		mu.Unlock()
	})

	c := startConnector(t, td.ln.Addr().String(), d)
	waitConnected(t, c, true)
	first := td.waitConn(t, 1)

	// Drop the session from the director side; the pilot must redial.
	_ = first.Close()
	td.waitConn(t, 2)
	waitConnected(t, c, true)

	// A successful connect resets the failure counter.
	if got := c.Attempts(); got != 0 {
		t.Fatalf("attempts not reset after reconnect: %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if connects < 2 || disconnects < 1 {
		t.Fatalf("lifecycle notifications missed: connects=%d disconnects=%d", connects, disconnects)
	}
}

func TestConnectorRetriesWhileEndpointDown(t *testing.T) {
	// Bind a port, then close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := startConnector(t, addr, dispatch.New())
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Attempts() >= 3 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected repeated dial attempts, got %d", c.Attempts())
}

func TestNewConnectorRequiresAddress(t *testing.T) {
	if _, err := NewConnector(Config{}, nil); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}
}
