package protocol

// Event is a named UI event from the client. Name routes to a server
// handler ("filter.select", "page.next"); Value carries the event's
// single string argument, empty when the event has none. Seq orders
// events within a session.
type Event struct {
	Seq   uint64
	Name  string
	Value string
}

// EncodeEvent encodes an Event to bytes.
func EncodeEvent(ev *Event) []byte {
	e := NewEncoder()
	e.WriteUvarint(ev.Seq)
	e.WriteString(ev.Name)
	e.WriteString(ev.Value)
	return e.Bytes()
}

// DecodeEvent decodes an Event from bytes.
func DecodeEvent(data []byte) (*Event, error) {
	d := NewDecoder(data)
	ev := &Event{}

	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	ev.Seq = seq

	if ev.Name, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ev.Value, err = d.ReadString(); err != nil {
		return nil, err
	}
	return ev, nil
}
