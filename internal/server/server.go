// Package server implements the WebSocket game server: HTTP accept
// and upgrade, per-connection pumps, and the session hub that owns
// the authoritative table state.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	rand "math/rand/v2"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
)

// Server accepts WebSocket clients on /ws and hands them to the hub.
type Server struct {
	cfg      *Config
	logger   *log.Logger
	clock    quartz.Clock
	session  *Session
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a server around a fresh session.
func New(cfg *Config, logger *log.Logger, clock quartz.Clock, rng *rand.Rand) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger.WithPrefix("server"),
		clock:   clock,
		session: NewSession(cfg, logger, clock, rng),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Bots connect from anywhere; there is no browser origin
			// to protect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.httpSrv = &http.Server{
		Addr:    cfg.ListenAddress(),
		Handler: mux,
	}
	return s
}

// Session exposes the hub for tests.
func (s *Server) Session() *Session {
	return s.session
}

// Handler exposes the HTTP mux, letting tests mount the server on an
// httptest listener.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	pingInterval := time.Duration(s.cfg.Game.PingIntervalMs) * time.Millisecond
	pongTimeout := time.Duration(s.cfg.Game.PongTimeoutMs) * time.Millisecond

	conn := NewConnection(ws, s.logger, s.clock, pingInterval, pongTimeout,
		s.session.HandleFrame, s.session.HandleDisconnect)
	s.session.Register(conn)
	conn.Start()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
