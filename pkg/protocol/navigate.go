package protocol

// NavigateCause says why the client's URL changed outside a commit.
type NavigateCause uint8

const (
	// CausePop is back/forward navigation (the popstate case).
	CausePop NavigateCause = 0x00

	// CauseLink is an in-page link the client intercepted.
	CauseLink NavigateCause = 0x01

	// CauseLoad is a fresh page load on an existing session.
	CauseLoad NavigateCause = 0x02
)

func (nc NavigateCause) String() string {
	switch nc {
	case CausePop:
		return "pop"
	case CauseLink:
		return "link"
	case CauseLoad:
		return "load"
	default:
		return "unknown"
	}
}

// Navigate notifies the server that the client's URL changed by
// navigation rather than by an acknowledged commit. The server updates
// its mirror and refreshes bound values; it does not commit back.
type Navigate struct {
	Cause NavigateCause
	URL   string
}

// EncodeNavigate encodes a Navigate to bytes.
func EncodeNavigate(n *Navigate) []byte {
	e := NewEncoder()
	e.WriteByte(byte(n.Cause))
	e.WriteString(n.URL)
	return e.Bytes()
}

// DecodeNavigate decodes a Navigate from bytes.
func DecodeNavigate(data []byte) (*Navigate, error) {
	d := NewDecoder(data)
	n := &Navigate{}

	cause, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	n.Cause = NavigateCause(cause)

	if n.URL, err = d.ReadString(); err != nil {
		return nil, err
	}
	return n, nil
}
