package server

import (
	"fmt"
	"testing"

	"github.com/urlbind-dev/urlbind/pkg/protocol"
)

func commit(seq uint64) *protocol.Commit {
	return &protocol.Commit{
		Seq:  seq,
		Mode: protocol.CommitReplace,
		URL:  fmt.Sprintf("/?seq=%d", seq),
	}
}

func seqs(commits []*protocol.Commit) []uint64 {
	out := make([]uint64, len(commits))
	for i, c := range commits {
		out[i] = c.Seq
	}
	return out
}

func TestCommitBufferEmpty(t *testing.T) {
	b := NewCommitBuffer(8)

	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
	if b.MinSeq() != 0 {
		t.Errorf("MinSeq() = %d, want 0", b.MinSeq())
	}

	commits, ok := b.After(0)
	if !ok {
		t.Error("After(0) on empty buffer should be ok")
	}
	if len(commits) != 0 {
		t.Errorf("After(0) returned %d commits, want 0", len(commits))
	}
}

func TestCommitBufferAfter(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		add      int
		afterSeq uint64
		want     []uint64
		wantOK   bool
	}{
		{
			name:     "all from start",
			capacity: 8,
			add:      5,
			afterSeq: 0,
			want:     []uint64{1, 2, 3, 4, 5},
			wantOK:   true,
		},
		{
			name:     "from middle",
			capacity: 8,
			add:      5,
			afterSeq: 3,
			want:     []uint64{4, 5},
			wantOK:   true,
		},
		{
			name:     "caught up",
			capacity: 8,
			add:      5,
			afterSeq: 5,
			want:     nil,
			wantOK:   true,
		},
		{
			name:     "ahead of buffer",
			capacity: 8,
			add:      5,
			afterSeq: 9,
			want:     nil,
			wantOK:   true,
		},
		{
			name:     "overflow drops oldest",
			capacity: 3,
			add:      5,
			afterSeq: 2,
			want:     []uint64{3, 4, 5},
			wantOK:   true,
		},
		{
			name:     "overflow gap not replayable",
			capacity: 3,
			add:      5,
			afterSeq: 1,
			want:     nil,
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewCommitBuffer(tt.capacity)
			for i := 1; i <= tt.add; i++ {
				b.Add(commit(uint64(i)))
			}

			commits, ok := b.After(tt.afterSeq)
			if ok != tt.wantOK {
				t.Fatalf("After(%d) ok = %v, want %v", tt.afterSeq, ok, tt.wantOK)
			}

			got := seqs(commits)
			if len(got) != len(tt.want) {
				t.Fatalf("After(%d) = %v, want %v", tt.afterSeq, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("After(%d)[%d] = %d, want %d", tt.afterSeq, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCommitBufferTrimTo(t *testing.T) {
	b := NewCommitBuffer(8)
	for i := 1; i <= 5; i++ {
		b.Add(commit(uint64(i)))
	}

	b.TrimTo(3)

	if b.Len() != 2 {
		t.Errorf("Len() after TrimTo(3) = %d, want 2", b.Len())
	}
	if b.MinSeq() != 4 {
		t.Errorf("MinSeq() after TrimTo(3) = %d, want 4", b.MinSeq())
	}

	commits, ok := b.After(3)
	if !ok {
		t.Fatal("After(3) should still be replayable after trim")
	}
	if got := seqs(commits); len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Errorf("After(3) = %v, want [4 5]", got)
	}
}

func TestCommitBufferTrimAll(t *testing.T) {
	b := NewCommitBuffer(4)
	for i := 1; i <= 3; i++ {
		b.Add(commit(uint64(i)))
	}

	b.TrimTo(10)

	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
	if b.MaxSeq() != 3 {
		t.Errorf("MaxSeq() = %d, want 3 after draining", b.MaxSeq())
	}

	// Fully acked clients are caught up; anyone behind needs a resync.
	if _, ok := b.After(3); !ok {
		t.Error("After(3) on drained buffer should be ok")
	}
	if _, ok := b.After(2); ok {
		t.Error("After(2) on drained buffer should not be replayable")
	}
}

func TestCommitBufferWrap(t *testing.T) {
	b := NewCommitBuffer(3)
	for i := 1; i <= 3; i++ {
		b.Add(commit(uint64(i)))
	}
	b.TrimTo(2)
	// Positions of 1 and 2 are reused.
	b.Add(commit(4))
	b.Add(commit(5))

	commits, ok := b.After(2)
	if !ok {
		t.Fatal("After(2) should be replayable")
	}
	if got := seqs(commits); len(got) != 3 || got[0] != 3 || got[1] != 4 || got[2] != 5 {
		t.Errorf("After(2) = %v, want [3 4 5]", got)
	}
}

func TestCommitBufferMinCapacity(t *testing.T) {
	b := NewCommitBuffer(0)
	b.Add(commit(1))
	b.Add(commit(2))

	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
	if b.MinSeq() != 2 {
		t.Errorf("MinSeq() = %d, want 2", b.MinSeq())
	}
}

func TestCommitBufferClear(t *testing.T) {
	b := NewCommitBuffer(4)
	for i := 1; i <= 4; i++ {
		b.Add(commit(uint64(i)))
	}

	b.Clear()

	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
	b.Add(commit(5))
	if b.MinSeq() != 5 {
		t.Errorf("MinSeq() = %d, want 5", b.MinSeq())
	}
}

func BenchmarkCommitBufferAdd(b *testing.B) {
	buf := NewCommitBuffer(128)
	c := commit(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Seq = uint64(i + 1)
		buf.Add(c)
	}
}
