package director

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pagepilot/pagectl/internal/auth"
	"github.com/pagepilot/pagectl/internal/dispatch"
	"github.com/pagepilot/pagectl/internal/observability"
	"github.com/pagepilot/pagectl/internal/protocol"
	"github.com/pagepilot/pagectl/internal/protocol/frame"
	"github.com/pagepilot/pagectl/internal/protocol/payload"
	"github.com/pagepilot/pagectl/internal/protocol/session"
)

// Policy selects how a new connection is admitted while a session is active.
type Policy string

const (
	// PolicyReplace unconditionally promotes every accepted connection to
	// the active session. The superseded connection is closed when the
	// registry reference changes, so it can never linger half-open.
	PolicyReplace Policy = "replace"
	// PolicyReject refuses extra connections with a plain-text line while a
	// session is active; they are closed before any frame of theirs could
	// reach the authenticator.
	PolicyReject Policy = "reject"
)

// RefusalLine is the plain-text answer written to a connection refused
// under PolicyReject.
const RefusalLine = "connection refused: another controller is active"

var (
	ErrListenAddrRequired = errors.New("director: listen address required")
	ErrSecretRequired     = errors.New("director: shared secret required")
	ErrInvalidPolicy      = errors.New("director: invalid admission policy")
	ErrNoActiveSession    = errors.New("director: no active session")
	ErrAlreadyListening   = errors.New("director: already listening")
)

// Config carries everything the server reads at start. No hot reload.
type Config struct {
	Name           string
	Listen         string
	Secret         string
	Policy         Policy
	MaxBufferBytes int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "director"
	}
	if c.Policy == "" {
		c.Policy = PolicyReplace
	}
	if c.MaxBufferBytes <= 0 {
		c.MaxBufferBytes = frame.DefaultMaxBufferBytes
	}
	return c
}

// Server accepts pilot connections and walks every inbound byte through
// frame reassembly, the api_key gate, and subscriber fan-out.
type Server struct {
	cfg        Config
	verifier   auth.Verifier
	dispatcher *dispatch.Dispatcher

	mu     sync.Mutex
	active *session.Conn
	ln     net.Listener
}

func NewServer(cfg Config, d *dispatch.Dispatcher) (*Server, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.Listen) == "" {
		return nil, ErrListenAddrRequired
	}
	if cfg.Secret == "" {
		return nil, ErrSecretRequired
	}
	if cfg.Policy != PolicyReplace && cfg.Policy != PolicyReject {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, cfg.Policy)
	}
	if d == nil {
		d = dispatch.New()
	}
	return &Server{
		cfg:        cfg,
		verifier:   auth.NewStaticVerifier(cfg.Secret),
		dispatcher: d,
	}, nil
}

// Listen binds the configured address. Call before Serve so tests and
// callers can read Addr.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return ErrAlreadyListening
	}
	ln, err := net.Listen("tcp", strings.TrimSpace(s.cfg.Listen))
	if err != nil {
		return fmt.Errorf("director: listen: %w", err)
	}
	s.ln = ln
	log.Info().Str("node", s.cfg.Name).Str("addr", ln.Addr().String()).
		Str("policy", string(s.cfg.Policy)).Msg("director listening")
	return nil
}

// Addr reports the bound listen address, empty before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Serve runs the accept loop until ctx is canceled or the listener fails.
// Transport errors on individual sessions never terminate the loop.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.ln
		s.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.closeActive()
				return nil
			}
			return fmt.Errorf("director: accept: %w", err)
		}
		conn := session.Wrap(nc, s.cfg.MaxBufferBytes)
		if !s.admit(conn) {
			continue
		}
		go s.readLoop(conn)
	}
}

// admit applies the configured admission policy. It is the only accept-side
// writer of the session registry.
func (s *Server) admit(conn *session.Conn) bool {
	s.mu.Lock()
	prev := s.active
	if prev != nil && s.cfg.Policy == PolicyReject {
		s.mu.Unlock()
		_ = conn.SendLine(RefusalLine)
		_ = conn.Close()
		observability.RecordAdmission(s.cfg.Name, string(s.cfg.Policy), "rejected")
		log.Warn().Str("node", s.cfg.Name).Str("conn", conn.ID()).
			Str("remote", conn.RemoteAddr()).Msg("extra connection refused")
		return false
	}
	s.active = conn
	s.mu.Unlock()

	if prev != nil {
		// Replace-on-connect: close the superseded socket explicitly so it
		// cannot linger unreachable behind the registry.
		_ = prev.Close()
		observability.RecordAdmission(s.cfg.Name, string(s.cfg.Policy), "replaced")
		log.Info().Str("node", s.cfg.Name).Str("conn", conn.ID()).
			Str("superseded", prev.ID()).Msg("active session replaced")
	} else {
		observability.RecordAdmission(s.cfg.Name, string(s.cfg.Policy), "accepted")
		log.Info().Str("node", s.cfg.Name).Str("conn", conn.ID()).
			Str("remote", conn.RemoteAddr()).Msg("controller connected")
	}
	observability.SetActiveSessions(s.cfg.Name, 1)
	s.dispatcher.NotifyConnect(conn.ID())
	return true
}

// readLoop drains one connection: reassemble, parse, verify, dispatch.
// Frames on one connection stay strictly FIFO because everything here runs
// synchronously before the next read.
func (s *Server) readLoop(conn *session.Conn) {
	defer s.dropConn(conn)
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.ingest(conn, buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, session.ErrConnClosed) {
				log.Warn().Str("node", s.cfg.Name).Str("conn", conn.ID()).Err(err).Msg("session read failed")
			}
			return
		}
	}
}

func (s *Server) ingest(conn *session.Conn, raw []byte) {
	frames, droppedBytes := conn.Decoder().Feed(raw)
	if droppedBytes > 0 {
		observability.RecordFrameDrop(s.cfg.Name, "buffer_overflow")
		log.Warn().Str("node", s.cfg.Name).Str("conn", conn.ID()).
			Int("bytes", droppedBytes).Msg("accumulation buffer exceeded ceiling, discarded")
	}
	for _, rawFrame := range frames {
		s.handleFrame(conn, rawFrame)
	}
}

func (s *Server) handleFrame(conn *session.Conn, rawFrame string) {
	msg, err := frame.Parse(rawFrame)
	if err != nil {
		observability.RecordFrameDrop(s.cfg.Name, "parse_error")
		log.Warn().Str("node", s.cfg.Name).Str("conn", conn.ID()).Err(err).Msg("malformed frame dropped")
		return
	}
	forward, err := s.verifier.Verify(msg)
	if err != nil {
		observability.RecordAuthRejection(s.cfg.Name)
		log.Warn().Str("node", s.cfg.Name).Str("conn", conn.ID()).Msg("frame rejected: invalid api key")
		if err := conn.SendJSON(protocol.RejectionFrame()); err != nil {
			log.Warn().Str("node", s.cfg.Name).Str("conn", conn.ID()).Err(err).Msg("rejection frame write failed")
		}
		return
	}
	observability.RecordFrame(s.cfg.Name, "in")
	s.dispatcher.Dispatch(forward, conn.ID())
}

// dropConn closes a finished connection and clears the registry only when
// the reference is still this connection. A superseded connection going
// away must not evict its replacement.
func (s *Server) dropConn(conn *session.Conn) {
	_ = conn.Close()
	s.mu.Lock()
	wasActive := s.active == conn
	if wasActive {
		s.active = nil
	}
	s.mu.Unlock()
	if !wasActive {
		return
	}
	observability.SetActiveSessions(s.cfg.Name, 0)
	log.Info().Str("node", s.cfg.Name).Str("conn", conn.ID()).Msg("controller disconnected")
	s.dispatcher.NotifyDisconnect(conn.ID())
}

func (s *Server) closeActive() {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active != nil {
		_ = active.Close()
	}
}

// Send writes one frame to the active session. Messages are addressable
// only through the registry; there is no path to a superseded connection.
func (s *Server) Send(v any) error {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active == nil {
		return ErrNoActiveSession
	}
	if err := active.SendJSON(v); err != nil {
		return err
	}
	observability.RecordFrame(s.cfg.Name, "out")
	return nil
}

// SendInstruction builds a payload frame and sends it to the active
// session. An unreadable imagePath degrades to a nil image inside Build.
func (s *Server) SendInstruction(text, imagePath string) error {
	return s.Send(payload.Build(text, imagePath))
}

// ActiveSession reports the current registry reference, if any.
func (s *Server) ActiveSession() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", false
	}
	return s.active.ID(), true
}

// Status is the ops-endpoint snapshot.
type Status struct {
	Node      string `json:"node"`
	Policy    string `json:"policy"`
	Listening string `json:"listening"`
	SessionID string `json:"session_id,omitempty"`
	Connected bool   `json:"connected"`
	Uptime    string `json:"uptime,omitempty"`
}

func (s *Server) Status(since time.Time) Status {
	id, ok := s.ActiveSession()
	st := Status{
		Node:      s.cfg.Name,
		Policy:    string(s.cfg.Policy),
		Listening: s.Addr(),
		SessionID: id,
		Connected: ok,
	}
	if !since.IsZero() {
		st.Uptime = time.Since(since).String()
	}
	return st
}
