// Package urlbind keeps UI-visible state synchronized with URL query
// parameters across browser history navigation.
//
// The core is two packages: querystring, a pure codec resolving one
// parameter against a URL, and binding, which holds the live value and
// commits every change to a navigation history. This root package adds
// the batteries: an App that runs the WebSocket session runtime so
// server-driven UIs can bind parameters per connected client.
//
// Library use, no server:
//
//	h := history.NewMemory("/blog?tag=ml")
//	tag := urlbind.Bind(h, "tag", urlbind.Absent)
//	tag.SetString("css", urlbind.Push) // h.Location() == "/blog?tag=css"
//
// Application use:
//
//	app := urlbind.New(urlbind.Config{
//	    Address: ":8080",
//	    OnSession: func(s *urlbind.Session) {
//	        tag := s.Bind("tag", urlbind.Absent)
//	        s.HandleEvent("filter.select", func(c urlbind.Ctx, v string) error {
//	            tag.SetString(v, urlbind.Push)
//	            return nil
//	        })
//	    },
//	})
//	log.Fatal(app.Run(context.Background()))
package urlbind

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/urlbind-dev/urlbind/pkg/binding"
	"github.com/urlbind-dev/urlbind/pkg/history"
	"github.com/urlbind-dev/urlbind/pkg/middleware"
	"github.com/urlbind-dev/urlbind/pkg/protocol"
	"github.com/urlbind-dev/urlbind/pkg/querystring"
	"github.com/urlbind-dev/urlbind/pkg/server"
	"github.com/urlbind-dev/urlbind/pkg/sessionstore"
)

// Core types re-exported so applications import one package.
type (
	// Value is a requested parameter value: Absent, Null, or a string.
	Value = querystring.Value

	// Resolved is a parameter value after resolution.
	Resolved = querystring.Resolved

	// Binding keeps one query parameter and an in-memory value in sync.
	Binding = binding.Binding

	// History is the navigation port bindings commit through.
	History = history.History

	// Session is one connected client in the session runtime.
	Session = server.Session

	// Ctx is the per-event context passed to handlers.
	Ctx = server.Ctx

	// Middleware wraps event handlers.
	Middleware = server.Middleware
)

// Requested-value constructors and sentinels.
var (
	// Absent reads the parameter without modifying the URL.
	Absent = querystring.Absent

	// Null deletes the parameter.
	Null = querystring.Null
)

// String returns a Value writing s as the parameter value.
func String(s string) Value { return querystring.String(s) }

// Stringify converts any value to a string Value; nil maps to Null.
func Stringify(v any) Value { return querystring.Stringify(v) }

// Binding options, usable at Bind time or per Set call.
var (
	// Push commits with a new history entry.
	Push = binding.Push

	// Replace commits over the current history entry (the default).
	Replace = binding.Replace

	// KeepNull makes a Null write degrade to a read.
	KeepNull = binding.KeepNull

	// DeleteOnNull restores delete-on-null for one call.
	DeleteOnNull = binding.DeleteOnNull
)

// Resolve reads or writes the parameter key in rawURL. It is the pure
// core: no history, no state, just the URL transform.
func Resolve(rawURL, key string, req Value, opts querystring.ResolveOptions) querystring.Result {
	return querystring.Resolve(rawURL, key, req, opts)
}

// Bind binds the query parameter key against h without committing.
func Bind(h History, key string, initial Value, opts ...binding.Option) *Binding {
	return binding.Bind(h, key, initial, opts...)
}

// Config is the application configuration, the user-friendly layer
// over server.ServerConfig.
type Config struct {
	// Address is the listen address. Default ":8080".
	Address string

	// Session configures session durability and limits.
	Session SessionConfig

	// Metrics configures the Prometheus endpoint and instrumentation.
	Metrics MetricsConfig

	// DevMode disables the same-origin WebSocket check so local
	// tooling can connect from any origin. Never use in production.
	DevMode bool

	// Logger is the structured logger. Defaults to slog.Default().
	Logger *slog.Logger

	// OnSession runs when a session starts or is restored. Bind
	// parameters and register event handlers here.
	OnSession func(*Session)

	// OnNavigate runs after client navigation (back, forward, link)
	// has been applied to the session's bindings.
	OnNavigate func(*Session, *protocol.Navigate)

	// EventMiddleware wraps every event handler, outermost first.
	// Metrics middleware is prepended automatically when enabled.
	EventMiddleware []Middleware
}

// SessionConfig configures session behavior.
type SessionConfig struct {
	// ResumeWindow is how long a disconnected session stays
	// resumable. Default 5 minutes.
	ResumeWindow time.Duration

	// IdleTimeout is how long an attached session may stay idle
	// before cleanup. Default 5 minutes.
	IdleTimeout time.Duration

	// MaxSessions caps concurrent sessions. 0 means unlimited.
	MaxSessions int

	// Store persists snapshots across detach and restarts. Nil keeps
	// sessions in memory only.
	Store sessionstore.Store
}

// MetricsConfig configures Prometheus observability.
type MetricsConfig struct {
	// Enabled mounts the metrics endpoint and instruments events,
	// commits, and sessions.
	Enabled bool

	// Path is the metrics route. Default "/metrics".
	Path string
}

// App is a configured urlbind application.
type App struct {
	config Config
	server *server.Server
}

// New creates an App from cfg. Zero-value fields get defaults.
func New(cfg Config) *App {
	sc := server.DefaultServerConfig()
	sc.Address = cfg.Address
	sc.Logger = cfg.Logger
	sc.MaxSessions = cfg.Session.MaxSessions
	sc.Store = cfg.Session.Store
	if cfg.Session.ResumeWindow > 0 {
		sc.ResumeWindow = cfg.Session.ResumeWindow
	}
	if cfg.Session.IdleTimeout > 0 {
		sc.Session.IdleTimeout = cfg.Session.IdleTimeout
	}
	if cfg.DevMode {
		sc.CheckOrigin = func(*http.Request) bool { return true }
	}

	sc.OnSession = cfg.OnSession
	sc.OnNavigate = cfg.OnNavigate
	sc.EventMiddleware = cfg.EventMiddleware

	if cfg.Metrics.Enabled {
		sc.MetricsEnabled = true
		if cfg.Metrics.Path != "" {
			sc.MetricsPath = cfg.Metrics.Path
		}
		sc.Session.Observer = middleware.PrometheusObserver()
		sc.EventMiddleware = append([]Middleware{middleware.Prometheus()}, sc.EventMiddleware...)
	}

	return &App{config: cfg, server: server.New(sc)}
}

// Run starts the application and blocks until ctx is done or a
// shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Shutdown stops the application gracefully: sessions snapshot to the
// store and the listener drains.
func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Handler returns the application's HTTP handler for mounting under an
// existing mux instead of Run.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Server returns the underlying session server.
func (a *App) Server() *server.Server {
	return a.server
}
