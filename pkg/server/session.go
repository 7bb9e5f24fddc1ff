package server

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urlbind-dev/urlbind/pkg/binding"
	"github.com/urlbind-dev/urlbind/pkg/history"
	"github.com/urlbind-dev/urlbind/pkg/protocol"
	"github.com/urlbind-dev/urlbind/pkg/querystring"
	"github.com/urlbind-dev/urlbind/pkg/sessionstore"
)

// Session is one connected client. It owns the server-side mirror of
// the client's URL and every binding created against it.
//
// Event handlers and navigation both run on the session's event loop,
// one at a time, so handler code touches bindings without locking.
// Everything else on Session is safe for concurrent use.
type Session struct {
	// ID is the session identifier, a 32-char hex string.
	ID string

	// CreatedAt is when the session was created. Immutable.
	CreatedAt time.Time

	mu       sync.Mutex // guards conn, done, flags below
	conn     *websocket.Conn
	done     chan struct{}
	closed   bool
	detached bool
	started  bool

	loopWG sync.WaitGroup

	lastActive atomic.Int64 // unix nanos
	detachedAt atomic.Int64 // unix nanos, 0 while attached

	mirror *history.Memory

	bindingMu sync.Mutex
	bindings  []boundParam

	handlerMu  sync.RWMutex
	handlers   map[string]EventHandler
	middleware []Middleware

	pendingMu sync.Mutex
	pending   *CommitBuffer

	sendSeq atomic.Uint64 // last commit sequence assigned
	recvSeq atomic.Uint64 // last event sequence received
	ackSeq  atomic.Uint64 // last commit sequence acknowledged

	events     chan *protocol.Event
	dispatchCh chan func()

	eventCount  atomic.Uint64
	commitCount atomic.Uint64
	bytesSent   atomic.Uint64
	bytesRecv   atomic.Uint64

	dataMu sync.RWMutex
	data   map[string]any

	navMu      sync.Mutex
	onNavigate []func(*protocol.Navigate)

	onDetach func(*Session)

	// restoredParams overrides binding initials once after a snapshot
	// restore. Written before the session is published, read during
	// the handshake's OnSession call, cleared after.
	restoredParams map[string]string

	config *SessionConfig
	logger *slog.Logger
}

type boundParam struct {
	key string
	b   *binding.Binding
}

// newSession creates a session mirroring url. An empty url becomes "/".
func newSession(conn *websocket.Conn, url string, config *SessionConfig, logger *slog.Logger) *Session {
	return newSessionWithID(generateSessionID(), conn, url, config, logger)
}

func newSessionWithID(id string, conn *websocket.Conn, url string, config *SessionConfig, logger *slog.Logger) *Session {
	if config == nil {
		config = DefaultSessionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		conn:       conn,
		done:       make(chan struct{}),
		mirror:     history.NewMemory(url),
		handlers:   make(map[string]EventHandler),
		pending:    NewCommitBuffer(config.MaxPendingCommits),
		events:     make(chan *protocol.Event, config.MaxEventQueue),
		dispatchCh: make(chan func(), config.MaxEventQueue),
		data:       make(map[string]any),
		config:     config,
		logger:     logger.With("session_id", id),
	}
	s.touch()
	return s
}

// restoreSession builds a session from a persisted snapshot. The
// commit sequence continues where the snapshot left off; held binding
// values come back through restoredParams when the app re-binds.
func restoreSession(snap *sessionstore.Snapshot, conn *websocket.Conn, config *SessionConfig, logger *slog.Logger) *Session {
	s := newSessionWithID(snap.ID, conn, snap.URL, config, logger)
	s.sendSeq.Store(snap.Seq)
	s.restoredParams = make(map[string]string, len(snap.Params))
	for k, v := range snap.Params {
		s.restoredParams[k] = v
	}
	return s
}

// generateSessionID returns a cryptographically random session ID.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("server: failed to generate session ID: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// Bind binds the query parameter key against the session's URL mirror
// and registers the binding so client navigation refreshes it.
//
// Writes through the returned binding update the mirror and queue a
// Commit frame for the client; Bind itself never commits. After a
// snapshot restore the recorded value of key overrides initial once,
// so held state survives the round trip through the store.
func (s *Session) Bind(key string, initial querystring.Value, opts ...binding.Option) *binding.Binding {
	if v, ok := s.restoredParams[key]; ok {
		initial = querystring.String(v)
	}

	b := binding.Bind(&sessionHistory{s: s}, key, initial, opts...)

	s.bindingMu.Lock()
	s.bindings = append(s.bindings, boundParam{key: key, b: b})
	s.bindingMu.Unlock()
	return b
}

// Binding returns the most recently bound binding for key, or nil.
func (s *Session) Binding(key string) *binding.Binding {
	s.bindingMu.Lock()
	defer s.bindingMu.Unlock()
	for i := len(s.bindings) - 1; i >= 0; i-- {
		if s.bindings[i].key == key {
			return s.bindings[i].b
		}
	}
	return nil
}

// Location returns the mirrored client URL.
func (s *Session) Location() string {
	return s.mirror.Location()
}

// History returns the session's URL mirror. The mirror's Location is
// authoritative; its entry stack is advisory, since back and forward
// movements on the client arrive only as location changes.
func (s *Session) History() *history.Memory {
	return s.mirror
}

// sessionHistory adapts the session mirror into the binding port:
// reads come from the mirror, commits update the mirror and queue a
// Commit frame for the client.
type sessionHistory struct {
	s *Session
}

var _ history.History = (*sessionHistory)(nil)

func (h *sessionHistory) Location() string {
	return h.s.mirror.Location()
}

func (h *sessionHistory) Push(url string) {
	h.s.mirror.Push(url)
	h.s.queueCommit(protocol.CommitPush, url)
}

func (h *sessionHistory) Replace(url string) {
	h.s.mirror.Replace(url)
	h.s.queueCommit(protocol.CommitReplace, url)
}

// queueCommit assigns the next sequence, buffers the commit for
// replay, and delivers it when a connection is attached. Undelivered
// commits stay buffered until acknowledged.
func (s *Session) queueCommit(mode protocol.CommitMode, url string) {
	seq := s.sendSeq.Add(1)
	c := &protocol.Commit{Seq: seq, Mode: mode, URL: url}

	s.pendingMu.Lock()
	s.pending.Add(c)
	s.pendingMu.Unlock()

	s.commitCount.Add(1)
	if obs := s.config.Observer; obs != nil {
		obs.RecordCommit(mode.String())
	}

	if err := s.sendCommit(c); err != nil {
		s.logger.Debug("commit buffered, not delivered", "seq", seq, "error", err)
	}
}

// OnNavigate registers fn to run after client navigation has been
// applied to the mirror and bindings. Listeners run on the event loop.
func (s *Session) OnNavigate(fn func(*protocol.Navigate)) {
	s.navMu.Lock()
	s.onNavigate = append(s.onNavigate, fn)
	s.navMu.Unlock()
}

// applyNavigate handles a Navigate frame on the event loop: the mirror
// follows the client's URL, registered bindings re-read it, and
// navigation listeners run. Nothing is committed back.
func (s *Session) applyNavigate(n *protocol.Navigate) {
	url := n.URL
	if url == "" {
		url = "/"
	}

	if n.Cause == protocol.CauseLink {
		s.mirror.Push(url)
	} else {
		s.mirror.Replace(url)
	}

	s.refreshBindings()

	s.navMu.Lock()
	listeners := make([]func(*protocol.Navigate), len(s.onNavigate))
	copy(listeners, s.onNavigate)
	s.navMu.Unlock()
	for _, fn := range listeners {
		fn(n)
	}

	s.logger.Debug("navigation applied", "cause", n.Cause.String(), "url", url)
}

func (s *Session) refreshBindings() {
	s.bindingMu.Lock()
	bound := make([]boundParam, len(s.bindings))
	copy(bound, s.bindings)
	s.bindingMu.Unlock()

	for _, p := range bound {
		p.b.Refresh()
	}
}

// QueueEvent queues a client event for the event loop. Returns
// ErrEventQueueFull when the queue is full; the event is dropped.
func (s *Session) QueueEvent(ev *protocol.Event) error {
	select {
	case s.events <- ev:
		return nil
	default:
		return ErrEventQueueFull
	}
}

// Dispatch queues fn to run on the event loop, serialized with event
// handlers. Use it to touch bindings from outside a handler.
func (s *Session) Dispatch(fn func()) error {
	if s.IsClosed() {
		return ErrSessionClosed
	}
	select {
	case s.dispatchCh <- fn:
		return nil
	default:
		return ErrEventQueueFull
	}
}

// SetData stores a session-scoped value.
func (s *Session) SetData(key string, value any) {
	s.dataMu.Lock()
	s.data[key] = value
	s.dataMu.Unlock()
}

// Data returns a session-scoped value.
func (s *Session) Data(key string) (any, bool) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// sendFrame writes one frame to the client. The connection write is
// serialized under s.mu.
func (s *Session) sendFrame(f *protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.conn == nil {
		return ErrNoConnection
	}

	if s.config.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}

	data := f.Encode()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		if obs := s.config.Observer; obs != nil {
			obs.RecordTransportError("write")
		}
		return NewSessionError(s.ID, "write "+f.Type.String(), err)
	}

	s.bytesSent.Add(uint64(len(data)))
	if obs := s.config.Observer; obs != nil {
		obs.RecordFrameSent(f.Type.String(), len(data))
	}
	return nil
}

func (s *Session) sendCommit(c *protocol.Commit) error {
	return s.sendFrame(protocol.NewFrame(protocol.FrameCommit, protocol.EncodeCommit(c)))
}

func (s *Session) sendError(em *protocol.ErrorMessage) error {
	return s.sendFrame(protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em)))
}

func (s *Session) sendPing() error {
	payload := protocol.EncodeControl(protocol.NewPing(uint64(time.Now().UnixMilli())))
	return s.sendFrame(protocol.NewFrame(protocol.FrameControl, payload))
}

func (s *Session) sendPong(timestamp uint64) error {
	payload := protocol.EncodeControl(protocol.NewPong(timestamp))
	return s.sendFrame(protocol.NewFrame(protocol.FrameControl, payload))
}

// Detach releases the connection but keeps the session resumable:
// mirror, bindings, handlers, and unacknowledged commits all stay.
func (s *Session) Detach() {
	s.detach(nil)
}

// detach stops the loops and drops the connection. With expected set,
// it only acts when that connection is still current, so a loop
// serving a superseded connection cannot detach a resumed session.
func (s *Session) detach(expected *websocket.Conn) {
	s.mu.Lock()
	if s.closed || s.detached {
		s.mu.Unlock()
		return
	}
	if expected != nil && s.conn != expected {
		s.mu.Unlock()
		return
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.stopLoopsLocked()
	s.detached = true
	s.started = false
	s.mu.Unlock()

	s.detachedAt.Store(time.Now().UnixNano())
	s.logger.Info("session detached", "pending_commits", s.PendingCommits())

	if s.onDetach != nil {
		s.onDetach(s)
	}
}

// Resume attaches a new connection to a detached session. The caller
// sends the handshake ack, then ReplayCommits, then Start.
func (s *Session) Resume(conn *websocket.Conn, lastSeq uint64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.conn != nil {
		// A still-attached connection is superseded by the new one.
		_ = s.conn.Close()
		s.conn = nil
	}
	s.stopLoopsLocked()
	s.started = false
	s.mu.Unlock()

	// Wait for the previous generation of loops to exit so two event
	// loops never drain the same channels.
	s.loopWG.Wait()

	s.mu.Lock()
	s.conn = conn
	s.done = make(chan struct{})
	s.detached = false
	s.mu.Unlock()

	s.detachedAt.Store(0)
	s.touch()

	if lastSeq > s.ackSeq.Load() {
		s.ackSeq.Store(lastSeq)
	}
	if lastSeq > s.sendSeq.Load() {
		// The client saw commits this session no longer knows about
		// (restored from an older snapshot). Keep sequences increasing.
		s.sendSeq.Store(lastSeq)
	}

	return nil
}

// ReplayCommits delivers the commits the client missed while detached.
// When the buffer no longer covers lastSeq, the current URL is
// committed once, authoritatively, in replace mode.
func (s *Session) ReplayCommits(lastSeq uint64) {
	s.pendingMu.Lock()
	s.pending.TrimTo(lastSeq)
	commits, ok := s.pending.After(lastSeq)
	s.pendingMu.Unlock()

	resync := !ok
	if ok && len(commits) == 0 && lastSeq < s.sendSeq.Load() {
		// The gap was trimmed by acks on a previous connection or
		// lost in a snapshot restore.
		resync = true
	}

	if resync {
		s.queueCommit(protocol.CommitReplace, s.Location())
		s.logger.Info("session resynced", "last_seq", lastSeq)
		return
	}

	for _, c := range commits {
		if err := s.sendCommit(c); err != nil {
			s.logger.Warn("commit replay failed", "seq", c.Seq, "error", err)
			return
		}
	}
	if len(commits) > 0 {
		s.logger.Info("commits replayed", "last_seq", lastSeq, "count", len(commits))
	}
}

// Close shuts the session down for good. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopLoopsLocked()
	if s.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	s.logger.Info("session closed",
		"events", s.eventCount.Load(),
		"commits", s.commitCount.Load(),
		"bytes_sent", s.bytesSent.Load(),
		"bytes_recv", s.bytesRecv.Load())
}

func (s *Session) stopLoopsLocked() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// IsClosed reports whether the session has been closed.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IsDetached reports whether the session is waiting for a resume.
func (s *Session) IsDetached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

// LastActive returns the time of the last client activity.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// DetachedAt returns when the session detached, zero while attached.
func (s *Session) DetachedAt() time.Time {
	n := s.detachedAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// NextSeq returns the sequence the next commit will carry.
func (s *Session) NextSeq() uint64 {
	return s.sendSeq.Load() + 1
}

// AckedSeq returns the last commit sequence the client acknowledged.
func (s *Session) AckedSeq() uint64 {
	return s.ackSeq.Load()
}

// PendingCommits returns the number of unacknowledged commits.
func (s *Session) PendingCommits() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return s.pending.Len()
}

func (s *Session) setOnDetach(fn func(*Session)) {
	s.onDetach = fn
}

func (s *Session) clearRestoredParams() {
	s.restoredParams = nil
}

// Snapshot captures the session state needed to resume it later: the
// mirrored URL, the resolved value of every bound parameter, and the
// commit sequence.
func (s *Session) Snapshot() *sessionstore.Snapshot {
	params := make(map[string]string)
	s.bindingMu.Lock()
	for _, p := range s.bindings {
		if v := p.b.Get(); v.Present {
			params[p.key] = v.Value
		}
	}
	s.bindingMu.Unlock()

	return &sessionstore.Snapshot{
		ID:     s.ID,
		URL:    s.Location(),
		Params: params,
		Seq:    s.sendSeq.Load(),
	}
}

// SessionStats is a point-in-time view of session counters.
type SessionStats struct {
	ID             string
	CreatedAt      time.Time
	LastActive     time.Time
	Detached       bool
	Events         uint64
	Commits        uint64
	AckedSeq       uint64
	PendingCommits int
	Bindings       int
	BytesSent      uint64
	BytesRecv      uint64
}

// Stats returns current session statistics.
func (s *Session) Stats() SessionStats {
	s.bindingMu.Lock()
	bindings := len(s.bindings)
	s.bindingMu.Unlock()

	return SessionStats{
		ID:             s.ID,
		CreatedAt:      s.CreatedAt,
		LastActive:     s.LastActive(),
		Detached:       s.IsDetached(),
		Events:         s.eventCount.Load(),
		Commits:        s.commitCount.Load(),
		AckedSeq:       s.ackSeq.Load(),
		PendingCommits: s.PendingCommits(),
		Bindings:       bindings,
		BytesSent:      s.bytesSent.Load(),
		BytesRecv:      s.bytesRecv.Load(),
	}
}

// NewMockSession creates a session without a connection, mirroring
// url, for tests and middleware development. An empty url becomes "/".
// Sends fail with ErrNoConnection; everything else works.
func NewMockSession(url string) *Session {
	return newSession(nil, url, DefaultSessionConfig(), slog.Default())
}
