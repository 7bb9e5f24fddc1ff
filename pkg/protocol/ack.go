package protocol

// Ack acknowledges commits up to LastSeq. The server trims its
// pending-commit buffer to entries after LastSeq, so a reconnecting
// client can be replayed only what it missed.
type Ack struct {
	LastSeq uint64
}

// EncodeAck encodes an Ack to bytes.
func EncodeAck(a *Ack) []byte {
	e := NewEncoder()
	e.WriteUvarint(a.LastSeq)
	return e.Bytes()
}

// DecodeAck decodes an Ack from bytes.
func DecodeAck(data []byte) (*Ack, error) {
	d := NewDecoder(data)
	lastSeq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return &Ack{LastSeq: lastSeq}, nil
}
