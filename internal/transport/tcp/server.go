// Package tcp hosts the plain-text line protocol server (spec §4.7):
// it accepts sockets, registers them with the Client Registry, and
// hands each one to the Worker Pool as a long-lived session.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-server/internal/core"
)

// Config is the subset of the loaded application configuration the
// server needs to bind and greet clients.
type Config struct {
	Port       int
	ServerName string
}

// Server owns the listening socket and drives the accept loop. Every
// accepted connection becomes one task on the shared Worker Pool; the
// pool's size is therefore the hard cap on concurrently served
// sessions (spec §9 Open Question: "what happens when threadPoolSize
// is smaller than maxUsers" — here, Enqueue fails and the connection
// is rejected and immediately closed, never left half-registered).
type Server struct {
	cfg      Config
	log      *zerolog.Logger
	clients  *core.ClientRegistry
	channels *core.ChannelRegistry
	router   *core.Router
	pool     *core.WorkerPool

	listener   net.Listener
	running    atomic.Bool
	nextConnID atomic.Uint64
}

// NewServer wires a Server to the registries, router and pool an
// app.App has already constructed; it does not bind a socket yet.
func NewServer(cfg Config, clients *core.ClientRegistry, channels *core.ChannelRegistry, router *core.Router, pool *core.WorkerPool, log *zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		clients:  clients,
		channels: channels,
		router:   router,
		pool:     pool,
	}
}

var errBufferOverflow = errors.New("tcp: inbound buffer exceeded MaxClientBufferSize without a newline")

// Serve binds the listening socket and runs the accept loop until ctx
// is canceled or Stop is called. It returns nil on a clean shutdown.
//
// Go's net.Listener/net.Conn already multiplex blocking-looking calls
// over the runtime's non-blocking netpoller, so Serve substitutes that
// for the reference implementation's manual EAGAIN/poll-sleep socket
// loop (sanctioned by spec §9) while keeping its externally observable
// behavior: capacity is checked before every accept, and a socket is
// never registered until room exists for it.
func (s *Server) Serve(ctx context.Context) error {
	lc := net.ListenConfig{Control: setReuseAddr}
	ln, err := lc.Listen(ctx, "tcp", ":"+strconv.Itoa(s.cfg.Port))
	if err != nil {
		return fmt.Errorf("tcp: listen on port %d: %w", s.cfg.Port, err)
	}
	s.listener = ln
	s.running.Store(true)

	s.log.Info().Int("port", s.cfg.Port).Msg("tcp server listening")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	for {
		for !s.clients.CanAcceptNewConnection() {
			if !s.running.Load() {
				return nil
			}
			time.Sleep(100 * time.Millisecond)
		}

		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.handleAccepted(conn)
	}
}

func (s *Server) handleAccepted(raw net.Conn) {
	id := s.nextConnID.Add(1)
	conn := core.NewConnection(id, raw)

	if !s.clients.AddClient(conn) {
		err := core.NewRegistryFullError()
		s.log.Warn().Str("conn_id", conn.TraceID()).Str("code", err.Code).Msg(err.Message)
		conn.Close()
		return
	}
	s.clients.IncrementTotalConnections()

	if !s.pool.Enqueue(func() { s.runSession(conn) }) {
		s.log.Warn().Str("conn_id", conn.TraceID()).Msg("rejecting connection: worker pool saturated")
		s.clients.RemoveClient(conn)
		return
	}
}

// Stop closes the listening socket and disconnects every registered
// client. There is no drain: in-flight outbound queues are discarded,
// matching spec §9's explicit decision not to wait for them.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for _, c := range s.clients.AllClients() {
		s.clients.RemoveClient(c)
	}
}

// runSession is the task body scheduled on the Worker Pool for one
// accepted connection. It occupies its worker for the entire session
// lifetime (spec §4.1), internally running the read and write sides
// as a goroutine pair in the teacher's readLoop/writeLoop idiom.
func (s *Server) runSession(conn *core.Connection) {
	defer s.finishSession(conn)

	s.router.Welcome(conn, s.cfg.ServerName)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 2)
	go func() { errCh <- s.readLoop(ctx, conn) }()
	go func() { errCh <- s.writeLoop(ctx, conn) }()

	err := <-errCh
	cancel()
	conn.Close()
	<-errCh

	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Debug().Str("conn_id", conn.TraceID()).Err(err).Msg("session ended")
	}
}

func (s *Server) readLoop(ctx context.Context, conn *core.Connection) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_ = conn.Conn().SetReadDeadline(time.Now().Add(250 * time.Millisecond))
		n, err := conn.Conn().Read(buf)
		if n > 0 {
			conn.AppendToBuffer(buf[:n])
			if conn.BufferLen() > core.MaxClientBufferSize {
				return errBufferOverflow
			}
			for {
				line, ok := conn.ExtractLine()
				if !ok {
					break
				}
				if line != "" {
					s.router.HandleMessage(conn, line)
				}
			}
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *core.Connection) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				line, ok := conn.PeekMessage()
				if !ok {
					break
				}
				n, err := conn.Conn().Write([]byte(line))
				if err != nil {
					return err
				}
				conn.AddSentBytes(n)
				conn.PopMessage()
			}
		}
	}
}

func (s *Server) finishSession(conn *core.Connection) {
	// A /quit already removed the client (and its channel memberships,
	// via the registry's onRemoved hook) before this goroutine got here;
	// only a socket-level disconnect still needs cleaning up.
	if s.clients.ClientExists(conn) {
		s.clients.RemoveClient(conn)
	}
	s.log.Info().
		Str("conn_id", conn.TraceID()).
		Str("nickname", conn.Nickname()).
		Str("received", humanize.Bytes(uint64(conn.BytesIn()))).
		Str("sent", humanize.Bytes(uint64(conn.BytesOut()))).
		Msg("session closed")
}
