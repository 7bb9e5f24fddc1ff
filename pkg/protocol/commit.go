package protocol

// CommitMode selects the history semantics of a commit.
type CommitMode uint8

const (
	// CommitReplace overwrites the client's current history entry.
	CommitReplace CommitMode = 0x00

	// CommitPush adds a new history entry.
	CommitPush CommitMode = 0x01
)

func (cm CommitMode) String() string {
	if cm == CommitPush {
		return "push"
	}
	return "replace"
}

// Commit instructs the client to commit URL to its history facility.
// Seq orders commits within a session; the client applies them in
// sequence and acknowledges the last one applied.
type Commit struct {
	Seq  uint64
	Mode CommitMode
	URL  string
}

// NewReplaceCommit creates a replace-mode commit.
func NewReplaceCommit(seq uint64, url string) *Commit {
	return &Commit{Seq: seq, Mode: CommitReplace, URL: url}
}

// NewPushCommit creates a push-mode commit.
func NewPushCommit(seq uint64, url string) *Commit {
	return &Commit{Seq: seq, Mode: CommitPush, URL: url}
}

// EncodeCommit encodes a Commit to bytes.
func EncodeCommit(c *Commit) []byte {
	e := NewEncoder()
	e.WriteUvarint(c.Seq)
	e.WriteByte(byte(c.Mode))
	e.WriteString(c.URL)
	return e.Bytes()
}

// DecodeCommit decodes a Commit from bytes.
func DecodeCommit(data []byte) (*Commit, error) {
	d := NewDecoder(data)
	c := &Commit{}

	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	c.Seq = seq

	mode, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	c.Mode = CommitMode(mode)

	if c.URL, err = d.ReadString(); err != nil {
		return nil, err
	}
	return c, nil
}
