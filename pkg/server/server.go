package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urlbind-dev/urlbind/pkg/protocol"
)

// Server accepts WebSocket connections and runs a session per client.
type Server struct {
	config   *ServerConfig
	manager  *Manager
	upgrader websocket.Upgrader
	router   chi.Router

	httpServer *http.Server

	logger *slog.Logger
}

// New creates a Server from config. A nil config gets defaults.
func New(config *ServerConfig) *Server {
	def := DefaultServerConfig()
	if config == nil {
		config = def
	}
	if config.Address == "" {
		config.Address = def.Address
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = def.ReadBufferSize
	}
	if config.WriteBufferSize <= 0 {
		config.WriteBufferSize = def.WriteBufferSize
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = SameOriginCheck
	}
	if config.Session == nil {
		config.Session = DefaultSessionConfig()
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}
	if config.ResumeWindow <= 0 {
		config.ResumeWindow = def.ResumeWindow
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.MetricsPath == "" {
		config.MetricsPath = def.MetricsPath
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	s := &Server{
		config: config,
		logger: config.Logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}

	s.manager = NewManager(config.Session, &ManagerOptions{
		MaxSessions:     config.MaxSessions,
		ResumeWindow:    config.ResumeWindow,
		CleanupInterval: config.CleanupInterval,
		Store:           config.Store,
	}, config.Logger)

	r := chi.NewRouter()
	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	if config.MetricsEnabled {
		r.Handle(config.MetricsPath, promhttp.Handler())
	}
	s.router = r

	return s
}

// Handler returns the server's HTTP handler, for mounting under an
// existing mux.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Manager returns the session manager.
func (s *Server) Manager() *Manager {
	return s.manager
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.manager.Count(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			"error", err,
			"remote_addr", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(s.config.Session.MaxMessageSize)

	hello, err := s.readHello(conn)
	if err != nil {
		s.logger.Warn("handshake failed", "error", err, "remote_addr", r.RemoteAddr)
		s.rejectHandshake(conn, protocol.HandshakeInvalidFormat)
		return
	}

	if hello.Version.Major != protocol.CurrentVersion.Major {
		s.logger.Warn("protocol version mismatch",
			"client_version", fmt.Sprintf("%d.%d", hello.Version.Major, hello.Version.Minor),
			"server_version", fmt.Sprintf("%d.%d", protocol.CurrentVersion.Major, protocol.CurrentVersion.Minor))
		s.rejectHandshake(conn, protocol.HandshakeVersionMismatch)
		return
	}

	if hello.SessionID != "" {
		s.resumeSession(conn, hello)
		return
	}
	s.startSession(conn, hello)
}

// readHello reads the client's Hello frame, bounded by the handshake
// timeout.
func (s *Server) readHello(conn *websocket.Conn) (*protocol.ClientHello, error) {
	if t := s.config.Session.HandshakeTimeout; t > 0 {
		conn.SetReadDeadline(time.Now().Add(t))
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read hello: %w", err)
	}

	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return nil, fmt.Errorf("decode hello frame: %w", err)
	}
	if frame.Type != protocol.FrameHello {
		return nil, fmt.Errorf("%w: expected hello frame, got %s", ErrInvalidHandshake, frame.Type)
	}

	hello, err := protocol.DecodeClientHello(frame.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode hello payload: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	return hello, nil
}

func (s *Server) startSession(conn *websocket.Conn, hello *protocol.ClientHello) {
	sess, err := s.manager.Create(conn, hello.URL)
	if err != nil {
		status := protocol.HandshakeInternalError
		if errors.Is(err, ErrMaxSessionsReached) {
			status = protocol.HandshakeServerBusy
		}
		s.logger.Warn("session create failed", "error", err)
		s.rejectHandshake(conn, status)
		return
	}

	s.initSession(sess)

	if err := s.sendHelloAck(sess); err != nil {
		s.manager.Close(sess.ID)
		return
	}
	sess.Start()
}

func (s *Server) resumeSession(conn *websocket.Conn, hello *protocol.ClientHello) {
	ctx := context.Background()
	if t := s.config.Session.HandshakeTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	sess, restored, err := s.manager.Resume(ctx, hello.SessionID, conn, hello.LastSeq)
	if err != nil {
		status := protocol.HandshakeSessionExpired
		if errors.Is(err, ErrMaxSessionsReached) {
			status = protocol.HandshakeServerBusy
		}
		s.logger.Info("session resume rejected",
			"session_id", hello.SessionID,
			"error", err)
		s.rejectHandshake(conn, status)
		return
	}

	if restored {
		// Restored sessions run the app hook again to rebuild
		// bindings and handlers; saved parameter values take
		// precedence over the hook's initials.
		s.initSession(sess)
		sess.clearRestoredParams()
	}

	if err := s.sendHelloAck(sess); err != nil {
		s.manager.Close(sess.ID)
		return
	}
	sess.Start()
	sess.ReplayCommits(hello.LastSeq)
}

// initSession wires configured middleware and hooks into a session
// before the app sees it.
func (s *Server) initSession(sess *Session) {
	for _, mw := range s.config.EventMiddleware {
		sess.Use(mw)
	}
	if hook := s.config.OnNavigate; hook != nil {
		sess.OnNavigate(func(n *protocol.Navigate) {
			hook(sess, n)
		})
	}
	if s.config.OnSession != nil {
		s.safeOnSession(sess)
	}
}

// safeOnSession runs the app's session hook, containing panics so a
// bad hook cannot take down the accept path.
func (s *Server) safeOnSession(sess *Session) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session hook panicked",
				"session_id", sess.ID,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	s.config.OnSession(sess)
}

func (s *Server) sendHelloAck(sess *Session) error {
	ack := protocol.NewServerHello(sess.ID, sess.NextSeq(), uint64(time.Now().UnixMilli()))
	frame := &protocol.Frame{
		Type:    protocol.FrameHelloAck,
		Payload: protocol.EncodeServerHello(ack),
	}
	if err := sess.sendFrame(frame); err != nil {
		s.logger.Warn("hello ack failed", "session_id", sess.ID, "error", err)
		return err
	}
	return nil
}

// rejectHandshake sends an error ServerHello and drops the connection.
func (s *Server) rejectHandshake(conn *websocket.Conn, status protocol.HandshakeStatus) {
	frame := &protocol.Frame{
		Type:    protocol.FrameHelloAck,
		Payload: protocol.EncodeServerHello(protocol.NewServerHelloError(status)),
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
	conn.Close()
}

// Run starts the HTTP server and blocks until ctx is done, a shutdown
// signal arrives, or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-sigCh:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully stops the server: sessions are snapshotted and
// closed, then the HTTP listener drains.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down", "active_sessions", s.manager.Count())

	if err := s.manager.Shutdown(ctx); err != nil {
		s.logger.Warn("session manager shutdown failed", "error", err)
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}
