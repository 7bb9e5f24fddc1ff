package server

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/urlbind-dev/urlbind/pkg/protocol"
)

// Start launches the session's read, write, and event loops for the
// current connection. Safe to call after Resume; a second call for the
// same connection is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	if s.closed || s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	conn, done := s.conn, s.done
	s.mu.Unlock()

	s.loopWG.Add(3)
	go func() {
		defer s.loopWG.Done()
		s.readLoop(conn, done)
	}()
	go func() {
		defer s.loopWG.Done()
		s.writeLoop(done)
	}()
	go func() {
		defer s.loopWG.Done()
		s.eventLoop(done)
	}()
}

// readLoop reads frames from conn until it fails or the session stops,
// then detaches the session if conn is still its current connection.
// Mock sessions have no connection and nothing to read; their event
// loop runs until the session closes.
func (s *Session) readLoop(conn *websocket.Conn, done chan struct{}) {
	if conn == nil {
		<-done
		return
	}
	defer s.detach(conn)

	for {
		select {
		case <-done:
			return
		default:
		}

		if s.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				s.logger.Warn("read failed", "error", err)
				if obs := s.config.Observer; obs != nil {
					obs.RecordTransportError("read")
				}
			}
			return
		}

		s.bytesRecv.Add(uint64(len(msg)))
		s.touch()

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.logger.Warn("invalid frame", "error", err)
			_ = s.sendError(protocol.NewError(protocol.ErrInvalidFrame, "malformed frame"))
			continue
		}

		s.handleFrame(frame, done)
	}
}

// handleFrame routes one decoded frame. Events and navigation join the
// event loop; acks and control frames are handled inline.
func (s *Session) handleFrame(frame *protocol.Frame, done chan struct{}) {
	switch frame.Type {
	case protocol.FrameEvent:
		ev, err := protocol.DecodeEvent(frame.Payload)
		if err != nil {
			s.logger.Warn("invalid event payload", "error", err)
			_ = s.sendError(protocol.NewError(protocol.ErrInvalidEvent, "malformed event"))
			return
		}
		if err := s.QueueEvent(ev); err != nil {
			s.logger.Warn("event dropped", "event", ev.Name, "seq", ev.Seq)
			_ = s.sendError(protocol.NewError(protocol.ErrRateLimited, "event queue full"))
		}

	case protocol.FrameNavigate:
		nav, err := protocol.DecodeNavigate(frame.Payload)
		if err != nil {
			s.logger.Warn("invalid navigate payload", "error", err)
			return
		}
		// Navigation joins the event loop so binding access stays
		// single-threaded. Unlike events it is never dropped.
		select {
		case s.dispatchCh <- func() { s.applyNavigate(nav) }:
		case <-done:
		}

	case protocol.FrameAck:
		ack, err := protocol.DecodeAck(frame.Payload)
		if err != nil {
			s.logger.Warn("invalid ack payload", "error", err)
			return
		}
		s.handleAck(ack)

	case protocol.FrameControl:
		s.handleControl(frame.Payload)

	default:
		s.logger.Warn("unexpected frame type", "type", frame.Type.String())
	}
}

// handleAck records the client's progress and trims the commit buffer.
func (s *Session) handleAck(ack *protocol.Ack) {
	s.ackSeq.Store(ack.LastSeq)
	s.pendingMu.Lock()
	s.pending.TrimTo(ack.LastSeq)
	s.pendingMu.Unlock()
}

func (s *Session) handleControl(payload []byte) {
	ct, data, err := protocol.DecodeControl(payload)
	if err != nil {
		s.logger.Warn("invalid control payload", "error", err)
		return
	}

	switch ct {
	case protocol.ControlPing:
		var ts uint64
		if pp, ok := data.(*protocol.PingPong); ok {
			ts = pp.Timestamp
		}
		_ = s.sendPong(ts)

	case protocol.ControlPong:
		s.logger.Debug("pong received")

	case protocol.ControlClose:
		s.logger.Debug("close requested by client")
		s.Close()

	default:
		s.logger.Debug("unknown control type", "type", ct.String())
	}
}

// writeLoop sends heartbeat pings until the session stops.
func (s *Session) writeLoop(done chan struct{}) {
	if s.config.HeartbeatInterval <= 0 {
		<-done
		return
	}

	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.sendPing(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// eventLoop runs queued events and dispatched functions one at a time.
func (s *Session) eventLoop(done chan struct{}) {
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		case fn := <-s.dispatchCh:
			s.runDispatched(fn)
		case <-done:
			return
		}
	}
}
