package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/shmkit/itsgate/internal/logger"
	"github.com/shmkit/itsgate/pkg/gateway/wire"
	"github.com/shmkit/itsgate/pkg/metrics"
)

// listenRetryDelay spaces out listener rebuild attempts after a listener
// level failure.
const listenRetryDelay = time.Second

// Config holds the gateway server settings.
type Config struct {
	Host string
	Port int

	// CertFile and KeyFile locate the PEM encoded TLS server credentials.
	CertFile string
	KeyFile  string

	// SessionLogInterval is how often the live session table is logged at
	// debug level. Zero disables the summary.
	SessionLogInterval time.Duration
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// Server accepts TLS connections and serves the gateway command protocol on
// each. The accept loop runs inside a rebuild loop so a listener level
// failure restarts the listener without dropping connections already
// handed to their handler goroutines.
type Server struct {
	config     Config
	dispatcher *Dispatcher
	sessions   *SessionTable
	metrics    metrics.GatewayMetrics
	tlsConfig  *tls.Config

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	ready     chan struct{}
	readyOnce sync.Once
}

// NewServer loads the TLS credentials and builds a server. metrics may be
// nil.
func NewServer(cfg Config, dispatcher *Dispatcher, sessions *SessionTable, m metrics.GatewayMetrics) (*Server, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading TLS key pair: %w", err)
	}
	return NewServerTLS(cfg, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, dispatcher, sessions, m), nil
}

// NewServerTLS builds a server around an already assembled TLS config.
func NewServerTLS(cfg Config, tlsConfig *tls.Config, dispatcher *Dispatcher, sessions *SessionTable, m metrics.GatewayMetrics) *Server {
	return &Server{
		config:     cfg,
		dispatcher: dispatcher,
		sessions:   sessions,
		metrics:    m,
		tlsConfig:  tlsConfig,
		conns:      make(map[net.Conn]struct{}),
		shutdown:   make(chan struct{}),
		ready:      make(chan struct{}),
	}
}

// Serve listens and accepts connections until Stop is called or ctx is
// cancelled. A listener failure is logged and the listener rebuilt;
// sessions owned by live handlers survive the rebuild.
func (s *Server) Serve(ctx context.Context) error {
	if s.config.SessionLogInterval > 0 {
		s.wg.Add(1)
		go s.logSessions()
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.shutdown:
		}
	}()

	for {
		ln, err := net.Listen("tcp", s.config.Addr())
		if err != nil {
			if s.stopping() {
				return nil
			}
			logger.Error("listen failed, retrying",
				"addr", s.config.Addr(),
				"error", err)
			if s.metrics != nil {
				s.metrics.RecordListenerRestart()
			}
			select {
			case <-time.After(listenRetryDelay):
				continue
			case <-s.shutdown:
				return nil
			}
		}

		s.mu.Lock()
		s.listener = ln
		s.mu.Unlock()
		s.readyOnce.Do(func() { close(s.ready) })
		logger.Info("gateway listening", "addr", ln.Addr().String())

		err = s.acceptLoop(ctx, ln)
		ln.Close()
		if s.stopping() {
			s.wg.Wait()
			return nil
		}

		logger.Error("accept loop failed, rebuilding listener", "error", err)
		if s.metrics != nil {
			s.metrics.RecordListenerRestart()
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordConnectionAccepted()
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		// The session slot exists from accept time so the handler, the
		// logger, and teardown all see one coherent entry.
		sess := s.sessions.Add(conn.RemoteAddr().String())

		s.wg.Add(1)
		go s.handleConn(ctx, conn, sess)
	}
}

// WaitReady blocks until the first listener is bound or ctx expires.
func (s *Server) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the bound listener address, or "" before Serve binds one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) stopping() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

// Stop closes the listener and every open connection, then waits for the
// handlers to drain. Safe to call more than once.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
}

// handleConn owns one client connection: explicit TLS handshake, then a
// decode/dispatch/encode loop until the peer goes away or sends something
// that does not parse. Teardown always removes the session slot, which is
// how a failed handshake ends with no table entry left behind.
func (s *Server) handleConn(ctx context.Context, raw net.Conn, sess *Session) {
	remote := sess.RemoteAddr
	log := logger.With("remote", remote, "conn_id", sess.ConnID)

	// raw is the conn acceptLoop registered; teardown must close and
	// deregister that same value, not the TLS wrapper built below.
	defer func() {
		raw.Close()
		s.sessions.Remove(remote)
		s.mu.Lock()
		delete(s.conns, raw)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordConnectionClosed()
		}
		s.wg.Done()
		log.Debug("connection closed")
	}()

	tlsConn, ok := raw.(*tls.Conn)
	if !ok {
		tlsConn = tls.Server(raw, s.tlsConfig)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		if s.metrics != nil {
			s.metrics.RecordHandshakeFailure()
		}
		log.Warn("TLS handshake failed", "error", err)
		return
	}

	log.Debug("connection established")

	dec := json.NewDecoder(tlsConn)
	enc := json.NewEncoder(tlsConn)

	for {
		var req wire.Request
		if err := dec.Decode(&req); err != nil {
			if s.stopping() || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			// Anything undecodable tears the connection down; the client
			// re-connects and starts over with a clean session.
			log.Warn("closing connection on decode error", "error", err)
			return
		}

		resp := s.dispatcher.Handle(ctx, &req, sess)
		if err := enc.Encode(resp); err != nil {
			log.Warn("closing connection on write error", "error", err)
			return
		}
	}
}

// logSessions periodically logs a summary of the live session table.
func (s *Server) logSessions() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SessionLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			summaries := s.sessions.Snapshot()
			users := make([]string, 0, len(summaries))
			for _, sm := range summaries {
				name := sm.Username
				if name == "" {
					name = "(anonymous)"
				}
				users = append(users, fmt.Sprintf("%s=%s", sm.RemoteAddr, name))
			}
			logger.Debug("session table", "count", len(summaries), "sessions", users)
		case <-s.shutdown:
			return
		}
	}
}
