package server

import (
	"context"

	"github.com/urlbind-dev/urlbind/pkg/protocol"
)

// Ctx is the per-event context passed to handlers and middleware. It
// lives for one event and is used from one goroutine, so it needs no
// locking.
type Ctx interface {
	// Session returns the session the event belongs to.
	Session() *Session

	// Event returns the decoded event.
	Event() *protocol.Event

	// Location returns the session's mirrored URL at call time.
	Location() string

	// StdContext returns the standard context for downstream calls.
	StdContext() context.Context

	// SetStdContext replaces the standard context, e.g. to carry a
	// trace span into the handler.
	SetStdContext(ctx context.Context)

	// SetValue stores an event-scoped value, the channel middleware
	// uses to hand artifacts to handlers and later middleware.
	SetValue(key string, value any)

	// Value returns an event-scoped value, nil when unset.
	Value(key string) any
}

type eventCtx struct {
	session *Session
	event   *protocol.Event
	std     context.Context
	values  map[string]any
}

var _ Ctx = (*eventCtx)(nil)

func newEventCtx(s *Session, ev *protocol.Event) *eventCtx {
	return &eventCtx{session: s, event: ev}
}

func (c *eventCtx) Session() *Session {
	return c.session
}

func (c *eventCtx) Event() *protocol.Event {
	return c.event
}

func (c *eventCtx) Location() string {
	return c.session.Location()
}

func (c *eventCtx) StdContext() context.Context {
	if c.std == nil {
		return context.Background()
	}
	return c.std
}

func (c *eventCtx) SetStdContext(ctx context.Context) {
	c.std = ctx
}

func (c *eventCtx) SetValue(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}

func (c *eventCtx) Value(key string) any {
	return c.values[key]
}

// NewTestCtx builds a Ctx for handler and middleware tests.
func NewTestCtx(s *Session, ev *protocol.Event) Ctx {
	return newEventCtx(s, ev)
}
