package protocol

// HandshakeStatus is the result of a handshake.
type HandshakeStatus uint8

const (
	HandshakeOK              HandshakeStatus = 0x00
	HandshakeVersionMismatch HandshakeStatus = 0x01
	HandshakeSessionExpired  HandshakeStatus = 0x02
	HandshakeServerBusy      HandshakeStatus = 0x03
	HandshakeInvalidFormat   HandshakeStatus = 0x04 // Malformed Hello payload
	HandshakeInternalError   HandshakeStatus = 0x05
)

func (hs HandshakeStatus) String() string {
	switch hs {
	case HandshakeOK:
		return "OK"
	case HandshakeVersionMismatch:
		return "VersionMismatch"
	case HandshakeSessionExpired:
		return "SessionExpired"
	case HandshakeServerBusy:
		return "ServerBusy"
	case HandshakeInvalidFormat:
		return "InvalidFormat"
	case HandshakeInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Version is a protocol version as major.minor.
type Version struct {
	Major uint8
	Minor uint8
}

// CurrentVersion is the protocol version this package speaks.
var CurrentVersion = Version{Major: 1, Minor: 0}

// ClientHello is sent by the client once the WebSocket is open.
//
// URL is the page's current location. The server seeds its session
// URL mirror from it, which is the one initial read the binding layer
// performs; an empty URL is treated as "/". SessionID carries a prior
// session to resume, empty for a fresh one, and LastSeq the last
// commit sequence the client applied.
type ClientHello struct {
	Version   Version
	SessionID string
	LastSeq   uint64
	URL       string
}

// ServerHello is the server's response to ClientHello.
type ServerHello struct {
	Status     HandshakeStatus
	SessionID  string // Assigned or resumed session ID
	NextSeq    uint64 // Next commit sequence the client will see
	ServerTime uint64 // Unix milliseconds
}

// NewClientHello creates a ClientHello for the current page URL at
// the current protocol version.
func NewClientHello(url string) *ClientHello {
	return &ClientHello{Version: CurrentVersion, URL: url}
}

// NewServerHello creates a successful ServerHello.
func NewServerHello(sessionID string, nextSeq, serverTime uint64) *ServerHello {
	return &ServerHello{
		Status:     HandshakeOK,
		SessionID:  sessionID,
		NextSeq:    nextSeq,
		ServerTime: serverTime,
	}
}

// NewServerHelloError creates a ServerHello carrying only an error
// status.
func NewServerHelloError(status HandshakeStatus) *ServerHello {
	return &ServerHello{Status: status}
}

// EncodeClientHello encodes a ClientHello to bytes.
func EncodeClientHello(ch *ClientHello) []byte {
	e := NewEncoder()
	e.WriteByte(ch.Version.Major)
	e.WriteByte(ch.Version.Minor)
	e.WriteString(ch.SessionID)
	e.WriteUvarint(ch.LastSeq)
	e.WriteString(ch.URL)
	return e.Bytes()
}

// DecodeClientHello decodes a ClientHello from bytes.
func DecodeClientHello(data []byte) (*ClientHello, error) {
	d := NewDecoder(data)
	ch := &ClientHello{}

	major, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	minor, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	ch.Version = Version{Major: major, Minor: minor}

	if ch.SessionID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ch.LastSeq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if ch.URL, err = d.ReadString(); err != nil {
		return nil, err
	}
	return ch, nil
}

// EncodeServerHello encodes a ServerHello to bytes.
func EncodeServerHello(sh *ServerHello) []byte {
	e := NewEncoder()
	e.WriteByte(byte(sh.Status))
	e.WriteString(sh.SessionID)
	e.WriteUvarint(sh.NextSeq)
	e.WriteUint64(sh.ServerTime)
	return e.Bytes()
}

// DecodeServerHello decodes a ServerHello from bytes.
func DecodeServerHello(data []byte) (*ServerHello, error) {
	d := NewDecoder(data)
	sh := &ServerHello{}

	status, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	sh.Status = HandshakeStatus(status)

	if sh.SessionID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if sh.NextSeq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if sh.ServerTime, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	return sh, nil
}
