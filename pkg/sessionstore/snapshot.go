package sessionstore

import (
	"encoding/json"
	"time"
)

// Snapshot is the JSON-serializable state of a detached session.
// It carries enough to resume the session at the exact URL it left off,
// including bound values that were filled from binding initial values and
// therefore never committed to the URL itself.
type Snapshot struct {
	// ID is the session identifier.
	ID string `json:"id"`

	// URL is the session's mirrored location at detach time.
	URL string `json:"url"`

	// Params maps each bound query key to its resolved value at detach
	// time. Keys whose value was absent are omitted.
	Params map[string]string `json:"params,omitempty"`

	// Seq is the last commit sequence number the session issued.
	Seq uint64 `json:"seq"`

	// SavedAt is when the snapshot was taken.
	SavedAt time.Time `json:"saved_at"`

	// Version is the snapshot format version.
	Version int `json:"version"`
}

// SnapshotVersion is the current snapshot format version.
// Increment when making breaking changes to the format.
const SnapshotVersion = 1

// EncodeSnapshot converts a Snapshot to bytes, stamping the current
// format version.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	s.Version = SnapshotVersion
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}
	return json.Marshal(s)
}

// DecodeSnapshot converts bytes back to a Snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
