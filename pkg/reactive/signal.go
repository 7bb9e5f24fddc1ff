package reactive

import (
	"reflect"
	"sync"
)

// subscriber is one registered change callback, identified by ID so
// cancellation can remove exactly the right entry.
type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Signal is a reactive value container. Set and Update notify
// subscribers only when the value actually changed, per the signal's
// equality function.
type Signal[T any] struct {
	// value is the current signal value.
	value T

	// mu protects the value.
	mu sync.RWMutex

	// subs are the callbacks subscribed to this signal.
	subs []subscriber[T]

	// subMu protects the subs slice.
	subMu sync.RWMutex

	// equal determines whether a write changed the value.
	// If nil, defaultEquals is used.
	equal func(T, T) bool
}

// NewSignal creates a signal holding the given initial value.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{value: initial}
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the value and notifies subscribers if it changed.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	changed := !s.equals(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.notify(value)
	}
}

// Update atomically reads and replaces the value. The function
// receives the current value and returns the new one.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	newValue := fn(s.value)
	changed := !s.equals(s.value, newValue)
	if changed {
		s.value = newValue
	}
	s.mu.Unlock()

	if changed {
		s.notify(newValue)
	}
}

// Subscribe registers fn to run after every change, receiving the new
// value. The returned cancel function removes the subscription; it is
// safe to call more than once.
func (s *Signal[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	id := nextID()
	s.subMu.Lock()
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				// Swap with the last element; notification order is
				// not part of the contract.
				s.subs[i] = s.subs[len(s.subs)-1]
				s.subs = s.subs[:len(s.subs)-1]
				return
			}
		}
	}
}

// WithEquals configures a custom equality function and returns the
// signal. Useful when reflect.DeepEqual is too expensive or has the
// wrong semantics for T.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// notify runs all subscribers with the new value. Subscribers are
// copied out first so callbacks run without the lock held and may
// themselves subscribe or cancel.
func (s *Signal[T]) notify(value T) {
	s.subMu.RLock()
	subs := make([]subscriber[T], len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	for _, sub := range subs {
		sub.fn(value)
	}
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals compares with == when T is comparable at runtime and
// falls back to reflect.DeepEqual for slices, maps, and functions.
func defaultEquals[T any](a, b T) bool {
	av, bv := any(a), any(b)
	if t := reflect.TypeOf(av); t != nil && t.Comparable() {
		return av == bv
	}
	return reflect.DeepEqual(a, b)
}
