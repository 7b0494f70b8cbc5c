// Package ws is the HTTP front door: it upgrades /ws requests to websocket
// connections and pumps frames between each connection and its relay session.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/flapper/internal/config"
	"github.com/cory-johannsen/flapper/internal/relay"
)

const defaultShutdownTimeout = 5 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// Server accepts websocket connections and hands each one to a relay session.
type Server struct {
	httpCfg config.HTTPConfig
	wsCfg   config.WebSocketConfig
	svc     *relay.Service
	logger  *zap.Logger
	metrics http.Handler

	upgrader websocket.Upgrader
	handler  http.Handler

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	running  bool
	closing  bool
	conns    map[*websocket.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer creates a Server that routes connections into svc.
//
// Precondition: svc and logger must be non-nil.
// Postcondition: Returns a Server ready to be started with ListenAndServe.
func NewServer(httpCfg config.HTTPConfig, wsCfg config.WebSocketConfig, svc *relay.Service, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		httpCfg: httpCfg,
		wsCfg:   wsCfg,
		svc:     svc,
		logger:  logger,
		conns:   make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(httpCfg.AllowedOrigins),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /health", serveHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	if s.httpCfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.httpCfg.StaticDir)))
	}
	return mux
}

func serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

// originChecker accepts requests with no Origin header, any origin when the
// list contains "*", and otherwise only listed origins.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// ListenAndServe binds the configured address and serves until Stop is called.
//
// Precondition: The server must not already be running.
// Postcondition: Returns nil after a clean Stop, including one that came first.
func (s *Server) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", s.httpCfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpCfg.Addr(), err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.httpCfg.ReadHeaderTimeout,
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		listener.Close()
		s.logger.Info("http server stopped before serving")
		return nil
	}
	s.srv = srv
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info("http server listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("static_dir", s.httpCfg.StaticDir),
		zap.Duration("startup", time.Since(start)),
	)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Stop shuts down the HTTP server, closes every websocket connection, and
// waits for their pumps to exit. Stop before ListenAndServe has bound makes
// the later ListenAndServe return immediately.
//
// Postcondition: Every session has been closed.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closing = true
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	srv := s.srv
	s.mu.Unlock()

	timeout := s.httpCfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown incomplete", zap.Error(err))
	}

	s.drain()
	s.logger.Info("http server stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// track records conn for Stop. It reports false once Stop has begun, and the
// caller must then drop the connection.
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(2)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// drain closes every tracked connection and waits for its pumps to exit.
func (s *Server) drain() {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
