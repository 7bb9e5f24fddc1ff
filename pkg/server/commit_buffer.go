package server

import "github.com/urlbind-dev/urlbind/pkg/protocol"

// CommitBuffer is a fixed-capacity ring of unacknowledged commits,
// kept so a resuming client can be replayed what it missed. Acks trim
// the front; when the ring overflows, the oldest commits are dropped
// and clients that far behind can no longer be replayed.
//
// CommitBuffer is not safe for concurrent use; the session serializes
// access to it.
type CommitBuffer struct {
	entries  []*protocol.Commit
	head     int
	count    int
	capacity int
	minSeq   uint64
	maxSeq   uint64
}

// NewCommitBuffer creates a buffer holding up to capacity commits.
func NewCommitBuffer(capacity int) *CommitBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &CommitBuffer{
		entries:  make([]*protocol.Commit, capacity),
		capacity: capacity,
	}
}

// Add appends a commit. Commits must be added in increasing Seq order.
// When the buffer is full the oldest commit is dropped.
func (b *CommitBuffer) Add(c *protocol.Commit) {
	if b.count == b.capacity {
		b.head = (b.head + 1) % b.capacity
		b.count--
		if b.count > 0 {
			b.minSeq = b.entries[b.head].Seq
		}
	}

	pos := (b.head + b.count) % b.capacity
	b.entries[pos] = c
	b.count++

	if b.count == 1 {
		b.minSeq = c.Seq
	}
	b.maxSeq = c.Seq
}

// After returns the commits with Seq greater than afterSeq, in order.
// ok is false when the buffer no longer covers that range, in which
// case the caller must fall back to an authoritative resync.
func (b *CommitBuffer) After(afterSeq uint64) (commits []*protocol.Commit, ok bool) {
	if afterSeq >= b.maxSeq {
		// Nothing newer, including the empty-buffer case.
		return nil, true
	}
	if b.count == 0 || afterSeq+1 < b.minSeq {
		return nil, false
	}

	for i := 0; i < b.count; i++ {
		c := b.entries[(b.head+i)%b.capacity]
		if c.Seq > afterSeq {
			commits = append(commits, c)
		}
	}
	return commits, true
}

// TrimTo drops commits with Seq up to and including seq. Called when
// the client acknowledges delivery.
func (b *CommitBuffer) TrimTo(seq uint64) {
	for b.count > 0 && b.entries[b.head].Seq <= seq {
		b.entries[b.head] = nil
		b.head = (b.head + 1) % b.capacity
		b.count--
	}
	if b.count > 0 {
		b.minSeq = b.entries[b.head].Seq
	}
}

// Len returns the number of buffered commits.
func (b *CommitBuffer) Len() int {
	return b.count
}

// MinSeq returns the lowest buffered sequence, 0 when empty.
func (b *CommitBuffer) MinSeq() uint64 {
	if b.count == 0 {
		return 0
	}
	return b.minSeq
}

// MaxSeq returns the highest sequence ever added, 0 before the first
// Add. It does not reset when the buffer drains.
func (b *CommitBuffer) MaxSeq() uint64 {
	return b.maxSeq
}

// Clear drops all buffered commits.
func (b *CommitBuffer) Clear() {
	for i := range b.entries {
		b.entries[i] = nil
	}
	b.head = 0
	b.count = 0
	b.minSeq = 0
}
