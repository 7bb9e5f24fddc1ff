package history

import "sync"

// Memory is an in-memory History backed by an entry stack with a
// current index, mirroring session-history semantics: Push truncates
// any forward entries, Replace overwrites in place, and Back, Forward,
// and Go move the index and fire navigation listeners.
//
// Memory serves two roles: the in-memory fake for binding tests, and
// the per-session URL mirror kept by the server runtime.
type Memory struct {
	mu         sync.Mutex
	entries    []Entry
	index      int
	listeners  []navListener
	listenerID uint64
}

type navListener struct {
	id uint64
	fn func(Entry)
}

var _ History = (*Memory)(nil)

// NewMemory creates a history containing a single entry for startURL.
// An empty startURL becomes "/".
func NewMemory(startURL string) *Memory {
	if startURL == "" {
		startURL = "/"
	}
	return &Memory{entries: []Entry{{URL: startURL}}}
}

// Location returns the URL of the current entry.
func (m *Memory) Location() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index].URL
}

// Push appends a new entry after the current one and makes it current.
// Entries past the old index are discarded, as a browser discards the
// forward stack on pushState.
func (m *Memory) Push(url string) {
	m.PushState(url, nil)
}

// PushState is Push with an opaque state payload.
func (m *Memory) PushState(url string, state any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries[:m.index+1], Entry{URL: url, State: state})
	m.index++
}

// Replace overwrites the current entry's URL, clearing its state.
func (m *Memory) Replace(url string) {
	m.ReplaceState(url, nil)
}

// ReplaceState is Replace with an opaque state payload.
func (m *Memory) ReplaceState(url string, state any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.index] = Entry{URL: url, State: state}
}

// Back moves one entry backward. It reports whether the index moved;
// at the oldest entry it is a no-op, as in a browser.
func (m *Memory) Back() bool {
	return m.Go(-1)
}

// Forward moves one entry forward, reporting whether the index moved.
func (m *Memory) Forward() bool {
	return m.Go(1)
}

// Go moves the index by delta entries, clamping nothing: an
// out-of-range delta is ignored entirely and Go reports false.
// A successful move fires navigation listeners with the new current
// entry. Go(0) is a no-op.
func (m *Memory) Go(delta int) bool {
	m.mu.Lock()
	target := m.index + delta
	if delta == 0 || target < 0 || target >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.index = target
	entry := m.entries[m.index]
	listeners := make([]navListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l.fn(entry)
	}
	return true
}

// OnNavigate registers fn to run after every Back, Forward, or Go move
// with the entry navigated to. Push and Replace do not fire listeners,
// matching the host facility where programmatic commits do not raise a
// navigation event. The returned cancel removes the listener.
func (m *Memory) OnNavigate(fn func(Entry)) func() {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	m.listenerID++
	id := m.listenerID
	m.listeners = append(m.listeners, navListener{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Length returns the number of entries.
func (m *Memory) Length() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Index returns the position of the current entry.
func (m *Memory) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Entries returns a copy of the full stack, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
