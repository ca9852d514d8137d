// Package server implements the TCP connection loop described in
// spec §4.8: admission, per-connection framing, and graceful
// shutdown. It owns no keyspace state of its own — every command is
// routed through a *command.Dispatcher.
package server

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"fedis/internal/command"
	"fedis/internal/protocol"
)

// Server accepts connections and runs each to completion against a
// shared Dispatcher.
type Server struct {
	cfg        *Config
	dispatcher *command.Dispatcher
	log        logrus.FieldLogger
	parser     *protocol.Parser

	listener net.Listener

	connIDCounter   atomic.Int64
	activeConnCount atomic.Int64

	mu       sync.Mutex
	conns    map[int64]net.Conn
	shutdown bool

	wg sync.WaitGroup
}

// New builds a Server bound to dispatcher, not yet listening.
func New(cfg *Config, dispatcher *command.Dispatcher, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		log:        log,
		parser:     protocol.NewParser(cfg.Limits),
		conns:      make(map[int64]net.Conn),
	}
}

// Serve binds the listen address and runs the accept loop until
// Shutdown is called or the listener otherwise fails.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.WithField("addr", s.cfg.ListenAddr).Info("server: listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			down := s.shutdown
			s.mu.Unlock()
			if down {
				return nil
			}
			s.log.WithError(err).Warn("server: accept failed")
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Shutdown stops accepting new connections and closes every live one;
// in-flight sessions finish their current command naturally.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	if s.listener != nil {
		s.listener.Close()
	}
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("server: all connections closed")
	case <-time.After(5 * time.Second):
		s.log.Warn("server: shutdown timeout, forcing exit")
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("server: connection handler panicked")
		}
	}()

	connID := s.connIDCounter.Add(1)

	if s.cfg.MaxConnections > 0 && int(s.activeConnCount.Load()) >= s.cfg.MaxConnections {
		conn.Write(protocol.Encode(protocol.ErrorFrame("ERR max number of clients reached"), protocol.Proto2))
		conn.Close()
		return
	}

	s.activeConnCount.Add(1)
	defer s.activeConnCount.Add(-1)

	s.mu.Lock()
	s.conns[connID] = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, connID)
		s.mu.Unlock()
		conn.Close()
	}()

	s.dispatcher.Stats.ClientConnected()
	defer s.dispatcher.Stats.ClientDisconnected()

	sess := command.NewSession(connID)
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		// The idle-timeout deadline only bounds the wait for the next
		// frame's first byte: once a frame starts arriving it is read
		// to completion regardless of how long that takes.
		if s.cfg.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		if _, err := reader.Peek(1); err != nil {
			return
		}
		conn.SetReadDeadline(time.Time{})

		args, err := s.parser.ReadCommand(reader)
		if err != nil {
			if errors.Is(err, protocol.ErrNoFrame) {
				return
			}
			var protoErr *protocol.ProtocolError
			if errors.As(err, &protoErr) {
				s.writeResponse(writer, sess, protocol.ErrorFrameFor(protocol.NewErr("%v", protoErr)))
				return
			}
			return
		}

		resp, action := s.dispatcher.Dispatch(sess, args)
		s.writeResponse(writer, sess, resp)
		if action == command.Close {
			return
		}
	}
}

func (s *Server) writeResponse(w *bufio.Writer, sess *command.Session, resp protocol.Frame) {
	if s.cfg.wrapsDebugIDs() {
		resp = protocol.Array([]protocol.Frame{
			protocol.BulkStringS("RID"),
			protocol.Integer(sess.NextRequestID()),
			resp,
		})
	}
	w.Write(protocol.Encode(resp, sess.Proto))
	w.Flush()
}
