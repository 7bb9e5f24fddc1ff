package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urlbind-dev/urlbind/pkg/sessionstore"
)

// storeTimeout bounds snapshot store calls made outside a request.
const storeTimeout = 5 * time.Second

// Manager tracks all sessions: creation, lookup, resume, expiry, and
// snapshot persistence.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	config *SessionConfig

	maxSessions     int
	resumeWindow    time.Duration
	cleanupInterval time.Duration

	// store persists snapshots on detach and shutdown. Nil disables
	// persistence; detached sessions then survive only in memory.
	store sessionstore.Store

	done        chan struct{}
	cleanupDone chan struct{}

	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
	peak         int

	onCreate func(*Session)
	onClose  func(*Session)

	logger *slog.Logger
}

// ManagerOptions configures a Manager. The zero value disables limits
// and persistence.
type ManagerOptions struct {
	// MaxSessions is the maximum concurrent sessions. 0 means unlimited.
	MaxSessions int

	// ResumeWindow is how long detached sessions stay resumable.
	ResumeWindow time.Duration

	// CleanupInterval is how often expired sessions are swept.
	CleanupInterval time.Duration

	// Store persists session snapshots. Optional.
	Store sessionstore.Store

	// OnSessionCreate and OnSessionClose observe the session lifecycle.
	OnSessionCreate func(*Session)
	OnSessionClose  func(*Session)
}

// NewManager creates a Manager and starts its cleanup loop. A nil
// config or opts gets defaults.
func NewManager(config *SessionConfig, opts *ManagerOptions, logger *slog.Logger) *Manager {
	if config == nil {
		config = DefaultSessionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		sessions:        make(map[string]*Session),
		config:          config,
		resumeWindow:    5 * time.Minute,
		cleanupInterval: 30 * time.Second,
		done:            make(chan struct{}),
		cleanupDone:     make(chan struct{}),
		logger:          logger.With("component", "session_manager"),
	}

	if opts != nil {
		m.maxSessions = opts.MaxSessions
		if opts.ResumeWindow > 0 {
			m.resumeWindow = opts.ResumeWindow
		}
		if opts.CleanupInterval > 0 {
			m.cleanupInterval = opts.CleanupInterval
		}
		m.store = opts.Store
		m.onCreate = opts.OnSessionCreate
		m.onClose = opts.OnSessionClose
	}

	go m.cleanupLoop()
	return m
}

// Create registers a new session for conn, mirroring url.
func (m *Manager) Create(conn *websocket.Conn, url string) (*Session, error) {
	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, ErrMaxSessionsReached
	}

	sess := newSession(conn, url, m.config, m.logger)
	sess.setOnDetach(m.onSessionDetach)
	m.sessions[sess.ID] = sess
	m.totalCreated.Add(1)
	if len(m.sessions) > m.peak {
		m.peak = len(m.sessions)
	}
	m.mu.Unlock()

	if obs := m.config.Observer; obs != nil {
		obs.RecordSessionStart()
	}
	if m.onCreate != nil {
		m.onCreate(sess)
	}

	m.logger.Info("session created",
		"session_id", sess.ID,
		"url", url,
		"active_sessions", m.Count())
	return sess, nil
}

// Get returns the session with the given ID, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Resume reattaches conn to session id. An in-memory session resumes
// with its full state; otherwise the snapshot store is consulted and
// the session is rebuilt from its snapshot. The returned bool reports
// a snapshot restore, which needs the app's session hook to run again.
//
// The caller finishes the handshake and then calls ReplayCommits and
// Start on the session.
func (m *Manager) Resume(ctx context.Context, id string, conn *websocket.Conn, lastSeq uint64) (*Session, bool, error) {
	if sess := m.Get(id); sess != nil {
		if sess.IsDetached() && time.Since(sess.DetachedAt()) > m.resumeWindow {
			m.Close(id)
			return nil, false, ErrSessionExpired
		}
		if err := sess.Resume(conn, lastSeq); err != nil {
			return nil, false, err
		}
		m.logger.Info("session resumed", "session_id", id, "last_seq", lastSeq)
		return sess, false, nil
	}

	if m.store == nil {
		return nil, false, ErrSessionNotFound
	}

	data, err := m.store.Load(ctx, id)
	if err != nil {
		m.logger.Warn("snapshot load failed", "session_id", id, "error", err)
		return nil, false, ErrSessionNotFound
	}
	if data == nil {
		return nil, false, ErrSessionNotFound
	}

	snap, err := sessionstore.DecodeSnapshot(data)
	if err != nil {
		m.logger.Warn("snapshot decode failed", "session_id", id, "error", err)
		return nil, false, ErrSessionNotFound
	}

	sess, err := m.restore(snap, conn)
	if err != nil {
		return nil, false, err
	}
	if lastSeq > sess.sendSeq.Load() {
		sess.sendSeq.Store(lastSeq)
	}
	return sess, true, nil
}

// restore registers a session rebuilt from a snapshot.
func (m *Manager) restore(snap *sessionstore.Snapshot, conn *websocket.Conn) (*Session, error) {
	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, ErrMaxSessionsReached
	}

	sess := restoreSession(snap, conn, m.config, m.logger)
	sess.setOnDetach(m.onSessionDetach)
	m.sessions[sess.ID] = sess
	if len(m.sessions) > m.peak {
		m.peak = len(m.sessions)
	}
	m.mu.Unlock()

	if obs := m.config.Observer; obs != nil {
		obs.RecordSessionStart()
	}

	m.logger.Info("session restored from snapshot",
		"session_id", sess.ID,
		"url", snap.URL,
		"seq", snap.Seq)
	return sess, nil
}

// onSessionDetach persists a snapshot when a session loses its
// connection, so it can outlive both the resume window in memory and
// the process itself.
func (m *Manager) onSessionDetach(s *Session) {
	if m.store == nil {
		return
	}

	data, err := sessionstore.EncodeSnapshot(s.Snapshot())
	if err != nil {
		m.logger.Warn("snapshot encode failed", "session_id", s.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.Save(ctx, s.ID, data, time.Now().Add(m.resumeWindow)); err != nil {
		m.logger.Warn("snapshot save failed", "session_id", s.ID, "error", err)
		return
	}
	m.logger.Debug("session snapshot saved", "session_id", s.ID, "bytes", len(data))
}

// Close closes session id and removes it, deleting its snapshot.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	sess.Close()
	m.totalClosed.Add(1)
	if obs := m.config.Observer; obs != nil {
		obs.RecordSessionEnd()
	}
	if m.onClose != nil {
		m.onClose(sess)
	}

	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.Warn("snapshot delete failed", "session_id", id, "error", err)
		}
	}

	m.logger.Info("session closed",
		"session_id", id,
		"active_sessions", m.Count())
}

// Count returns the number of tracked sessions, detached included.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ResumeWindow returns how long detached sessions stay resumable.
func (m *Manager) ResumeWindow() time.Duration {
	return m.resumeWindow
}

// ForEach iterates over all sessions. The callback must not block; it
// holds the read lock.
func (m *Manager) ForEach(fn func(*Session) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sess := range m.sessions {
		if !fn(sess) {
			break
		}
	}
}

func (m *Manager) cleanupLoop() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired()
		case <-m.done:
			return
		}
	}
}

// cleanupExpired removes detached sessions past the resume window and
// attached sessions past the idle timeout. Expired snapshots are left
// to the store's own expiry.
func (m *Manager) cleanupExpired() {
	now := time.Now()

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		var timeout time.Duration
		var since time.Time
		if sess.IsDetached() {
			timeout = m.resumeWindow
			since = sess.DetachedAt()
		} else {
			timeout = m.config.IdleTimeout
			since = sess.LastActive()
		}
		if timeout > 0 && now.Sub(since) > timeout {
			delete(m.sessions, id)
			expired = append(expired, sess)
		}
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
		m.totalClosed.Add(1)
		if obs := m.config.Observer; obs != nil {
			obs.RecordSessionEnd()
		}
		if m.onClose != nil {
			m.onClose(sess)
		}
	}

	if len(expired) > 0 {
		m.logger.Info("cleaned up expired sessions",
			"count", len(expired),
			"remaining", remaining)
	}
}

// Shutdown stops the cleanup loop, snapshots every session to the
// store, and closes all sessions. Idempotent.
func (m *Manager) Shutdown(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	default:
		close(m.done)
	}
	<-m.cleanupDone

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	// Persist everything first so sessions survive the restart.
	if m.store != nil && len(sessions) > 0 {
		snapshots := make(map[string]sessionstore.Record, len(sessions))
		expiresAt := time.Now().Add(m.resumeWindow)
		for _, s := range sessions {
			data, err := sessionstore.EncodeSnapshot(s.Snapshot())
			if err != nil {
				m.logger.Warn("snapshot encode failed", "session_id", s.ID, "error", err)
				continue
			}
			snapshots[s.ID] = sessionstore.Record{Data: data, ExpiresAt: expiresAt}
		}
		if err := m.store.SaveAll(ctx, snapshots); err != nil {
			m.logger.Warn("snapshot save-all failed", "error", err)
		}
	}

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(sess)
	}
	wg.Wait()

	m.totalClosed.Add(uint64(len(sessions)))
	m.logger.Info("session manager shutdown", "closed_sessions", len(sessions))
	return nil
}

// ManagerStats contains aggregated manager statistics.
type ManagerStats struct {
	Active       int
	Detached     int
	TotalCreated uint64
	TotalClosed  uint64
	Peak         int
}

// Stats returns aggregated session statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	peak := m.peak
	m.mu.RUnlock()

	detached := 0
	for _, s := range sessions {
		if s.IsDetached() {
			detached++
		}
	}

	return ManagerStats{
		Active:       len(sessions) - detached,
		Detached:     detached,
		TotalCreated: m.totalCreated.Load(),
		TotalClosed:  m.totalClosed.Load(),
		Peak:         peak,
	}
}
