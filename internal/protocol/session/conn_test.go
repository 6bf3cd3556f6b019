package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"testing"
)

func pipeConns(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	conn := Wrap(local, 0)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = remote.Close()
	})
	return conn, remote
}

func TestWrapAssignsUniqueHandles(t *testing.T) {
	a, _ := pipeConns(t)
	b, _ := pipeConns(t)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("expected distinct handles, got %q and %q", a.ID(), b.ID())
	}
}

func TestSendJSONWritesOneDelimitedFrame(t *testing.T) {
	conn, remote := pipeConns(t)

	done := make(chan error, 1)
	go func() {
		done <- conn.SendJSON(map[string]any{"text": "go"})
	}()

	line, err := bufio.NewReader(remote).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("send: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(line, &msg); err != nil {
		t.Fatalf("frame not JSON: %v", err)
	}
	if msg["text"] != "go" {
		t.Fatalf("unexpected frame: %#v", msg)
	}
}

func TestSendLineWritesPlainText(t *testing.T) {
	conn, remote := pipeConns(t)

	go func() { _ = conn.SendLine("refused") }()

	line, err := bufio.NewReader(remote).ReadString('\n')
	if err != nil {
		t.Fatalf("read line: %v", err)
	}
	if line != "refused\n" {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestCloseIsIdempotentAndFailsFurtherIO(t *testing.T) {
	conn, _ := pipeConns(t)
	if err := conn.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close must be a no-op, got %v", err)
	}
	if !conn.Closed() {
		t.Fatal("expected closed state")
	}
	if err := conn.SendJSON(map[string]any{}); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("expected ErrConnClosed, got %v", err)
	}
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("expected ErrConnClosed on read, got %v", err)
	}
}

func TestCloseDiscardsPartialFrame(t *testing.T) {
	conn, _ := pipeConns(t)
	conn.Decoder().Feed([]byte(`{"api_key":"a`))
	if conn.Decoder().Buffered() == 0 {
		t.Fatal("fixture should have buffered bytes")
	}
	_ = conn.Close()
	if conn.Decoder().Buffered() != 0 {
		t.Fatal("partial frame must be discarded with the connection")
	}
}
