package pilot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pagepilot/pagectl/internal/dispatch"
	"github.com/pagepilot/pagectl/internal/observability"
	"github.com/pagepilot/pagectl/internal/protocol"
	"github.com/pagepilot/pagectl/internal/protocol/frame"
	"github.com/pagepilot/pagectl/internal/protocol/session"
)

var (
	ErrAddressRequired = errors.New("pilot: director address required")
	ErrNotConnected    = errors.New("pilot: not connected")
)

// Config carries everything the connector reads at start.
type Config struct {
	Name    string
	Address string
	APIKey  string
	Session session.Config
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "pilot"
	}
	c.Session = c.Session.WithDefaults()
	return c
}

// Connector maintains one live session to the director and redials forever
// on failure. There is no attempt cap; the hosting process runs unattended.
type Connector struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	rng        *rand.Rand

	mu       sync.Mutex
	conn     *session.Conn
	attempts int
}

func NewConnector(cfg Config, d *dispatch.Dispatcher) (*Connector, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	if d == nil {
		d = dispatch.New()
	}
	return &Connector{
		cfg:        cfg,
		dispatcher: d,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run dials and serves until ctx is canceled. Every failure to establish,
// and every unexpected close of an established session, schedules a redial
// after the current backoff delay. Cancellation is the graceful-shutdown
// flag: it suppresses any further redial and closes the live connection.
func (c *Connector) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			attempt := c.bumpAttempts()
			delay := session.NextDelay(c.cfg.Session.Backoff, attempt, c.rng)
			observability.RecordReconnectAttempt(c.cfg.Name)
			log.Warn().Str("node", c.cfg.Name).Str("addr", c.cfg.Address).
				Int("attempt", attempt).Dur("retry_in", delay).Err(err).Msg("dial failed")
			if err := sleep(ctx, delay); err != nil {
				return nil
			}
			continue
		}

		// Established: the backoff sequence restarts at base.
		c.setConn(conn)
		c.resetAttempts()
		log.Info().Str("node", c.cfg.Name).Str("conn", conn.ID()).
			Str("addr", c.cfg.Address).Msg("connected to director")
		c.dispatcher.NotifyConnect(conn.ID())

		readErr := c.readLoop(ctx, conn)
		c.setConn(nil)
		_ = conn.Close()
		c.dispatcher.NotifyDisconnect(conn.ID())
		if ctx.Err() != nil {
			return nil
		}

		attempt := c.bumpAttempts()
		delay := session.NextDelay(c.cfg.Session.Backoff, attempt, c.rng)
		observability.RecordReconnectAttempt(c.cfg.Name)
		log.Warn().Str("node", c.cfg.Name).Str("conn", conn.ID()).
			Int("attempt", attempt).Dur("retry_in", delay).Err(readErr).Msg("session lost")
		if err := sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

func (c *Connector) dial(ctx context.Context) (*session.Conn, error) {
	dialer := net.Dialer{Timeout: c.cfg.Session.ConnectTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("pilot: dial %s: %w", c.cfg.Address, err)
	}
	return session.Wrap(nc, c.cfg.Session.MaxBufferBytes), nil
}

// readLoop drains the session: reassemble, parse, dispatch. Inbound
// director frames carry no api_key, so there is no auth gate on this side.
func (c *Connector) readLoop(ctx context.Context, conn *session.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.ingest(conn, buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("pilot: director closed the connection")
			}
			return err
		}
	}
}

func (c *Connector) ingest(conn *session.Conn, raw []byte) {
	frames, droppedBytes := conn.Decoder().Feed(raw)
	if droppedBytes > 0 {
		observability.RecordFrameDrop(c.cfg.Name, "buffer_overflow")
		log.Warn().Str("node", c.cfg.Name).Str("conn", conn.ID()).
			Int("bytes", droppedBytes).Msg("accumulation buffer exceeded ceiling, discarded")
	}
	for _, rawFrame := range frames {
		msg, err := frame.Parse(rawFrame)
		if err != nil {
			observability.RecordFrameDrop(c.cfg.Name, "parse_error")
			log.Warn().Str("node", c.cfg.Name).Str("conn", conn.ID()).Err(err).Msg("malformed frame dropped")
			continue
		}
		observability.RecordFrame(c.cfg.Name, "in")
		c.dispatcher.Dispatch(msg, conn.ID())
	}
}

// Send writes one action frame with the shared secret attached. The
// caller's map is not mutated.
func (c *Connector) Send(fields map[string]any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	msg := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		msg[k] = v
	}
	msg[protocol.FieldAPIKey] = c.cfg.APIKey
	if err := conn.SendJSON(msg); err != nil {
		return err
	}
	observability.RecordFrame(c.cfg.Name, "out")
	return nil
}

func (c *Connector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Connector) setConn(conn *session.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	if conn != nil {
		observability.SetActiveSessions(c.cfg.Name, 1)
	} else {
		observability.SetActiveSessions(c.cfg.Name, 0)
	}
}

func (c *Connector) bumpAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	return c.attempts
}

func (c *Connector) resetAttempts() {
	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()
}

// Attempts reports consecutive failures since the last established session.
func (c *Connector) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Status is the ops-endpoint snapshot.
type Status struct {
	Node      string `json:"node"`
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
	SessionID string `json:"session_id,omitempty"`
	Attempts  int    `json:"attempts"`
}

func (c *Connector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Node:      c.cfg.Name,
		Address:   c.cfg.Address,
		Connected: c.conn != nil,
		Attempts:  c.attempts,
	}
	if c.conn != nil {
		st.SessionID = c.conn.ID()
	}
	return st
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
