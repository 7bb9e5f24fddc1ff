package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/urlbind-dev/urlbind/pkg/protocol"
	"github.com/urlbind-dev/urlbind/pkg/sessionstore"
)

// SessionConfig contains per-session configuration.
type SessionConfig struct {
	// ReadTimeout is the maximum time to wait for a message from the client.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	WriteTimeout time.Duration

	// IdleTimeout is how long an attached session can go without
	// activity before it is cleaned up.
	IdleTimeout time.Duration

	// HandshakeTimeout is the maximum time to wait for the Hello frame.
	HandshakeTimeout time.Duration

	// HeartbeatInterval is how often to send ping frames.
	HeartbeatInterval time.Duration

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64

	// MaxEventQueue is the event channel capacity. Events arriving
	// with the queue full are dropped with an error frame.
	MaxEventQueue int

	// MaxPendingCommits is the capacity of the unacknowledged commit
	// buffer kept for replay on resume. When a client falls further
	// behind than this, resume degrades to a single authoritative
	// replace commit of the current URL.
	MaxPendingCommits int

	// Observer receives session lifecycle and transport callbacks.
	// Optional; nil disables.
	Observer Observer
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       5 * time.Minute,
		HandshakeTimeout:  10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		MaxMessageSize:    64 * 1024,
		MaxEventQueue:     256,
		MaxPendingCommits: 128,
	}
}

// Clone returns a copy of the config.
func (c *SessionConfig) Clone() *SessionConfig {
	clone := *c
	return &clone
}

// Observer receives counters from the session runtime. Implementations
// must be safe for concurrent use; the middleware package provides a
// Prometheus-backed one.
type Observer interface {
	// RecordSessionStart is called when a session is created or
	// restored from a snapshot.
	RecordSessionStart()

	// RecordSessionEnd is called when a session is closed for good.
	RecordSessionEnd()

	// RecordCommit is called for every commit queued, with the mode
	// string ("push" or "replace").
	RecordCommit(mode string)

	// RecordFrameSent is called after a frame is written to the
	// client, with the frame type string and encoded size.
	RecordFrameSent(frameType string, bytes int)

	// RecordTransportError is called on WebSocket read or write
	// failures, with the operation name.
	RecordTransportError(op string)
}

// ServerConfig contains server-wide configuration.
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080".
	Address string

	// ReadBufferSize and WriteBufferSize are the WebSocket buffer sizes.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the Origin header during the upgrade.
	// Defaults to SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Session is the per-session configuration.
	Session *SessionConfig

	// ShutdownTimeout is the maximum time for graceful shutdown.
	ShutdownTimeout time.Duration

	// MaxSessions is the maximum concurrent sessions. 0 means unlimited.
	MaxSessions int

	// ResumeWindow is how long a detached session stays resumable.
	ResumeWindow time.Duration

	// CleanupInterval is how often expired sessions are swept.
	CleanupInterval time.Duration

	// Store persists session snapshots across detach and restarts.
	// Optional; nil keeps sessions in memory only.
	Store sessionstore.Store

	// MetricsEnabled mounts a Prometheus endpoint at MetricsPath.
	MetricsEnabled bool

	// MetricsPath is the metrics route. Defaults to "/metrics".
	MetricsPath string

	// OnSession runs when a session starts or is restored from a
	// snapshot. This is where applications bind parameters and
	// register event handlers.
	OnSession func(*Session)

	// OnNavigate runs after client-driven navigation has been applied
	// to the session mirror and bindings.
	OnNavigate func(*Session, *protocol.Navigate)

	// EventMiddleware wraps every event handler, outermost first.
	EventMiddleware []Middleware

	// Logger is the structured logger. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:         ":8080",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     SameOriginCheck,
		Session:         DefaultSessionConfig(),
		ShutdownTimeout: 30 * time.Second,
		ResumeWindow:    5 * time.Minute,
		CleanupInterval: 30 * time.Second,
		MetricsPath:     "/metrics",
	}
}

// SameOriginCheck allows WebSocket connections only from the same
// origin as the request host. Requests without an Origin header (non
// browser clients) are allowed.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return originURL.Host == r.Host
}
