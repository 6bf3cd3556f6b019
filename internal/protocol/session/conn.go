package session

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pagepilot/pagectl/internal/protocol/frame"
)

var ErrConnClosed = errors.New("session: connection closed")

var nextConnID atomic.Uint64

// Conn is one live transport session: a unique handle, the underlying
// net.Conn, and a private frame Decoder. Writes are serialized so frames
// from concurrent senders never interleave on the wire.
type Conn struct {
	id  string
	nc  net.Conn
	dec *frame.Decoder

	wmu    sync.Mutex
	closed atomic.Bool
}

// Wrap adopts an established net.Conn. The caller that accepted or dialed
// it owns the returned Conn exclusively.
func Wrap(nc net.Conn, maxBufferBytes int) *Conn {
	return &Conn{
		id:  fmt.Sprintf("conn-%d", nextConnID.Add(1)),
		nc:  nc,
		dec: frame.NewDecoder(maxBufferBytes),
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) RemoteAddr() string {
	if addr := c.nc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Decoder returns the connection's private accumulation buffer. Only the
// connection's read loop may touch it.
func (c *Conn) Decoder() *frame.Decoder {
	return c.dec
}

// Read pulls the next chunk of raw bytes off the socket.
func (c *Conn) Read(buf []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrConnClosed
	}
	return c.nc.Read(buf)
}

// SendJSON writes v as one delimited frame.
func (c *Conn) SendJSON(v any) error {
	encoded, err := frame.Encode(v)
	if err != nil {
		return err
	}
	return c.write(encoded)
}

// SendLine writes one plain-text line, used for admission refusals.
func (c *Conn) SendLine(text string) error {
	return c.write(append([]byte(text), '\n'))
}

func (c *Conn) write(b []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.nc.Write(b); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	return nil
}

// Close is idempotent and safe at any byte offset of an in-flight frame;
// partially received data is discarded with the connection.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.dec.Reset()
	return c.nc.Close()
}

func (c *Conn) Closed() bool {
	return c.closed.Load()
}
