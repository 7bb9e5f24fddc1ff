package server

import (
	"errors"
	"runtime/debug"

	"github.com/urlbind-dev/urlbind/pkg/protocol"
)

// EventHandler processes one named client event. value is the event's
// string argument, empty when the event carries none. Handlers run on
// the session's event loop and may use bindings freely.
type EventHandler func(c Ctx, value string) error

// Middleware wraps event handlers. It receives the event context and a
// next function running the rest of the chain; returning without
// calling next short-circuits the handler.
type Middleware func(c Ctx, next func() error) error

// HandleEvent registers h for events named name, replacing any
// previous handler for that name.
func (s *Session) HandleEvent(name string, h EventHandler) {
	s.handlerMu.Lock()
	s.handlers[name] = h
	s.handlerMu.Unlock()
}

// Use appends middleware to the session's chain. Middleware added
// first runs outermost.
func (s *Session) Use(mw ...Middleware) {
	s.handlerMu.Lock()
	s.middleware = append(s.middleware, mw...)
	s.handlerMu.Unlock()
}

// handleEvent runs one event through the middleware chain on the event
// loop. Panics are recovered here so a broken handler cannot take the
// session down.
func (s *Session) handleEvent(ev *protocol.Event) {
	s.recvSeq.Store(ev.Seq)
	s.eventCount.Add(1)
	s.touch()

	s.handlerMu.RLock()
	h, ok := s.handlers[ev.Name]
	mws := make([]Middleware, len(s.middleware))
	copy(mws, s.middleware)
	s.handlerMu.RUnlock()

	if !ok {
		s.logger.Warn("no handler for event", "event", ev.Name, "seq", ev.Seq)
		_ = s.sendError(protocol.NewError(protocol.ErrHandlerNotFound, ev.Name))
		return
	}

	c := newEventCtx(s, ev)
	if err := s.runHandler(c, h, mws, ev.Value); err != nil {
		var he *HandlerError
		if errors.As(err, &he) {
			_ = s.sendError(protocol.NewError(protocol.ErrHandlerPanic, "internal error"))
			return
		}
		s.logger.Warn("event handler failed", "event", ev.Name, "error", err)
		_ = s.sendError(protocol.NewError(protocol.ErrServerError, err.Error()))
	}
}

// runHandler executes h through the middleware chain with panic
// recovery. A recovered panic comes back as a *HandlerError.
func (s *Session) runHandler(c Ctx, h EventHandler, mws []Middleware, value string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			s.logger.Error("event handler panicked",
				"event", c.Event().Name,
				"panic", r,
				"stack", string(stack))
			err = &HandlerError{
				SessionID: s.ID,
				Event:     c.Event().Name,
				Panic:     r,
				Stack:     stack,
			}
		}
	}()

	run := func() error { return h(c, value) }
	for i := len(mws) - 1; i >= 0; i-- {
		mw, next := mws[i], run
		run = func() error { return mw(c, next) }
	}
	return run()
}

// runDispatched executes a dispatched function with panic recovery.
func (s *Session) runDispatched(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dispatched function panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}
