// Package server runs the KMS host's TCP accept loop and per-connection
// state machine. It owns nothing about the wire format or the
// activation algorithm itself — internal/rpc frames PDUs and
// internal/dispatch runs the protocol; this package only wires sockets,
// backpressure, and graceful shutdown around them, following the
// teacher's pkg/adapter/nfs (NFSAdapter/NFSConnection) shape.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shalu066900/pykms/internal/dispatch"
	"github.com/shalu066900/pykms/internal/identity"
	"github.com/shalu066900/pykms/internal/logger"
	"github.com/shalu066900/pykms/internal/metrics"
	"github.com/shalu066900/pykms/internal/store"
)

// Server accepts connections on one or more listen addresses and
// serves the KMS activation protocol on each.
type Server struct {
	cfg         Config
	identity    *identity.ServerIdentity
	store       store.ClientStore
	dispatchCfg dispatch.Config
	metrics     metrics.Metrics

	listeners []net.Listener
	listenWG  sync.WaitGroup

	activeConns   sync.WaitGroup
	connCount     atomic.Int32
	connSemaphore chan struct{}

	activeConnections sync.Map // connection ID -> net.Conn, for forced close

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New builds a Server. It panics on an invalid Config, matching the
// teacher's "invalid config is a programmer error" convention.
func New(cfg Config, ident *identity.ServerIdentity, st store.ClientStore, dispatchCfg dispatch.Config, m metrics.Metrics) *Server {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("server: invalid config: %v", err))
	}

	var sem chan struct{}
	if cfg.MaxConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConnections)
	}

	return &Server{
		cfg:           cfg,
		identity:      ident,
		store:         st,
		dispatchCfg:   dispatchCfg,
		metrics:       m,
		connSemaphore: sem,
		shutdown:      make(chan struct{}),
	}
}

// Serve opens every configured listen address and accepts connections
// until ctx is cancelled or Stop is called. It returns once all
// listeners are closed and every accept loop has exited.
func (s *Server) Serve(ctx context.Context) error {
	for _, addr := range s.cfg.Addresses {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			s.initiateShutdown()
			return fmt.Errorf("server: listen on %s: %w", addr, err)
		}
		s.listeners = append(s.listeners, ln)
		logger.Info("kms server listening", "address", ln.Addr().String())
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received", logger.Err(ctx.Err()))
		s.initiateShutdown()
	}()

	for _, ln := range s.listeners {
		s.listenWG.Add(1)
		go s.acceptLoop(ctx, ln)
	}

	s.listenWG.Wait()
	return s.gracefulShutdown()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.listenWG.Done()

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			select {
			case <-s.shutdown:
				return
			default:
				logger.Debug("error accepting connection", "error", err)
				continue
			}
		}

		s.activeConns.Add(1)
		n := s.connCount.Add(1)
		connID := uuid.NewString()
		s.activeConnections.Store(connID, conn)

		if s.metrics != nil {
			s.metrics.RecordConnectionAccepted()
			s.metrics.SetActiveConnections(n)
		}
		if s.identity != nil {
			s.metricsSetClientCount()
		}

		go func(connID string, conn net.Conn) {
			defer func() {
				s.activeConnections.Delete(connID)
				s.activeConns.Done()
				remaining := s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
				if s.metrics != nil {
					s.metrics.RecordConnectionClosed()
					s.metrics.SetActiveConnections(remaining)
				}
			}()
			newConnection(s, conn, connID).serve(ctx)
		}(connID, conn)
	}
}

func (s *Server) metricsSetClientCount() {
	if s.metrics != nil {
		s.metrics.SetActiveClientCount(s.identity.CurrentClientCount())
	}
}

// initiateShutdown closes every listener and interrupts any connection
// currently blocked in a read, then lets acceptLoop/serve observe the
// closed shutdown channel. Safe to call multiple times or concurrently.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		for _, ln := range s.listeners {
			if err := ln.Close(); err != nil {
				logger.Debug("error closing listener", "error", err)
			}
		}
		deadline := time.Now().Add(100 * time.Millisecond)
		s.activeConnections.Range(func(_, v any) bool {
			if conn, ok := v.(net.Conn); ok {
				_ = conn.SetReadDeadline(deadline)
			}
			return true
		})
	})
}

// gracefulShutdown waits for in-flight connections to finish, force-
// closing any still open once cfg.Timeouts.Shutdown elapses.
func (s *Server) gracefulShutdown() error {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(s.cfg.Timeouts.Shutdown):
		remaining := s.forceCloseConnections()
		if remaining == 0 {
			return nil
		}
		return fmt.Errorf("server: shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *Server) forceCloseConnections() int {
	closed := 0
	s.activeConnections.Range(func(_, v any) bool {
		if conn, ok := v.(net.Conn); ok {
			if err := conn.Close(); err == nil {
				closed++
				if s.metrics != nil {
					s.metrics.RecordConnectionForceClosed()
				}
			}
		}
		return true
	})
	return closed
}

// Stop initiates graceful shutdown and blocks until it completes or ctx
// is cancelled.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.forceCloseConnections()
		return ctx.Err()
	}
}

// ActiveConnections returns the current number of open connections.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}
