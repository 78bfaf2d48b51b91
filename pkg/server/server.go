// Package server implements the chatterd chat server: connection
// supervision, the auth handshake, session registry, and message routing
// over length-prefixed JSON frames.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/chatterd/chatterd/pkg/auth"
	"github.com/chatterd/chatterd/pkg/store"
)

// Server ties the listener, registry, router and authenticator together.
// One Server may carry both the TCP and the WebSocket listener.
type Server struct {
	cfg      Config
	auth     *auth.Authenticator
	registry *Registry
	router   *Router
	metrics  *Metrics

	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup

	mu    sync.Mutex
	conns map[frameTransport]struct{}
}

// New creates a Server over the given user store. The store stays owned by
// the caller and is not closed on Shutdown.
func New(cfg Config, st store.UserStore) *Server {
	metrics := NewMetrics()
	registry := NewRegistry()
	return &Server{
		cfg:      cfg,
		auth:     auth.New(st),
		registry: registry,
		router:   NewRouter(registry, metrics),
		metrics:  metrics,
		conns:    make(map[frameTransport]struct{}),
	}
}

// Metrics exposes the server's collectors for the metrics HTTP endpoint.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Start binds the TCP listener and begins accepting connections. A bind
// failure is the only error; everything after that is per-connection.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Listen, err)
	}
	s.ln = ln
	s.running.Store(true)

	slog.Info("listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound TCP address, useful with a ":0" listen config.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops accepting, closes every open connection and waits for the
// connection goroutines to drain. Safe to call more than once.
func (s *Server) Shutdown() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}

	for _, name := range s.registry.Snapshot() {
		s.registry.Leave(name)
	}

	s.mu.Lock()
	for t := range s.conns {
		_ = t.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("server stopped")
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(newTCPTransport(conn))
		}()
	}
}

func (s *Server) trackConn(t frameTransport) {
	s.mu.Lock()
	s.conns[t] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConn(t frameTransport) {
	s.mu.Lock()
	delete(s.conns, t)
	s.mu.Unlock()
}
