package reactive

import (
	"strings"
	"sync"
	"testing"
)

func TestSignalGetSet(t *testing.T) {
	s := NewSignal("initial")
	if got := s.Get(); got != "initial" {
		t.Errorf("Get() = %q, want %q", got, "initial")
	}

	s.Set("updated")
	if got := s.Get(); got != "updated" {
		t.Errorf("Get() after Set = %q, want %q", got, "updated")
	}
}

func TestSignalNotifiesOnChange(t *testing.T) {
	s := NewSignal(0)

	var got []int
	s.Subscribe(func(v int) {
		got = append(got, v)
	})

	s.Set(1)
	s.Set(2)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("subscriber saw %v, want [1 2]", got)
	}
}

func TestSignalEqualWriteIsSilent(t *testing.T) {
	s := NewSignal("js")

	notified := 0
	s.Subscribe(func(string) { notified++ })

	s.Set("js")
	s.Set("js")
	if notified != 0 {
		t.Errorf("equal writes notified %d times, want 0", notified)
	}

	s.Set("go")
	if notified != 1 {
		t.Errorf("changing write notified %d times, want 1", notified)
	}
}

func TestSignalSubscribeCancel(t *testing.T) {
	s := NewSignal(0)

	notified := 0
	cancel := s.Subscribe(func(int) { notified++ })

	s.Set(1)
	cancel()
	s.Set(2)

	if notified != 1 {
		t.Errorf("subscriber notified %d times after cancel, want 1", notified)
	}

	// A second cancel is a no-op.
	cancel()
	s.Set(3)
	if notified != 1 {
		t.Errorf("subscriber notified %d times after double cancel, want 1", notified)
	}
}

func TestSignalCancelOneOfMany(t *testing.T) {
	s := NewSignal(0)

	var a, b int
	cancelA := s.Subscribe(func(int) { a++ })
	s.Subscribe(func(int) { b++ })

	s.Set(1)
	cancelA()
	s.Set(2)

	if a != 1 {
		t.Errorf("cancelled subscriber notified %d times, want 1", a)
	}
	if b != 2 {
		t.Errorf("remaining subscriber notified %d times, want 2", b)
	}
}

func TestSignalUpdate(t *testing.T) {
	s := NewSignal(10)
	s.Update(func(v int) int { return v + 5 })
	if got := s.Get(); got != 15 {
		t.Errorf("Get() after Update = %d, want 15", got)
	}

	notified := 0
	s.Subscribe(func(int) { notified++ })
	s.Update(func(v int) int { return v })
	if notified != 0 {
		t.Errorf("identity Update notified %d times, want 0", notified)
	}
}

func TestSignalWithEquals(t *testing.T) {
	s := NewSignal("js").WithEquals(strings.EqualFold)

	notified := 0
	s.Subscribe(func(string) { notified++ })

	s.Set("JS")
	if notified != 0 {
		t.Errorf("case-equal write notified %d times, want 0", notified)
	}
	if got := s.Get(); got != "js" {
		t.Errorf("Get() = %q, want original %q", got, "js")
	}

	s.Set("go")
	if notified != 1 {
		t.Errorf("distinct write notified %d times, want 1", notified)
	}
}

func TestSignalDeepEqualFallback(t *testing.T) {
	s := NewSignal([]string{"a", "b"})

	notified := 0
	s.Subscribe(func([]string) { notified++ })

	s.Set([]string{"a", "b"})
	if notified != 0 {
		t.Errorf("deep-equal write notified %d times, want 0", notified)
	}

	s.Set([]string{"a", "c"})
	if notified != 1 {
		t.Errorf("deep-unequal write notified %d times, want 1", notified)
	}
}

func TestSignalConcurrentAccess(t *testing.T) {
	s := NewSignal(0)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Set(v)
			_ = s.Get()
		}(i + 1)
	}
	wg.Wait()

	if got := s.Get(); got < 1 || got > 32 {
		t.Errorf("Get() after concurrent writes = %d, want a written value", got)
	}
}
