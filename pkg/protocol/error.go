package protocol

// ErrorCode identifies the type of error carried by an error frame.
type ErrorCode uint16

const (
	ErrUnknown         ErrorCode = 0x0000
	ErrInvalidFrame    ErrorCode = 0x0001 // Malformed frame
	ErrInvalidEvent    ErrorCode = 0x0002 // Malformed event payload
	ErrHandlerNotFound ErrorCode = 0x0003 // No handler for event name
	ErrHandlerPanic    ErrorCode = 0x0004 // Handler panicked
	ErrSessionExpired  ErrorCode = 0x0005 // Session no longer valid
	ErrRateLimited     ErrorCode = 0x0006 // Too many events
	ErrServerError     ErrorCode = 0x0100 // Internal server error
)

func (ec ErrorCode) String() string {
	switch ec {
	case ErrUnknown:
		return "Unknown"
	case ErrInvalidFrame:
		return "InvalidFrame"
	case ErrInvalidEvent:
		return "InvalidEvent"
	case ErrHandlerNotFound:
		return "HandlerNotFound"
	case ErrHandlerPanic:
		return "HandlerPanic"
	case ErrSessionExpired:
		return "SessionExpired"
	case ErrRateLimited:
		return "RateLimited"
	case ErrServerError:
		return "ServerError"
	default:
		return "Unknown"
	}
}

// ErrorMessage is sent over an error frame. Fatal errors close the
// connection after delivery.
type ErrorMessage struct {
	Code    ErrorCode
	Message string
	Fatal   bool
}

// NewError creates a non-fatal ErrorMessage.
func NewError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message}
}

// NewFatalError creates a fatal ErrorMessage.
func NewFatalError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message, Fatal: true}
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	if em.Fatal {
		return "fatal: " + em.Code.String() + ": " + em.Message
	}
	return em.Code.String() + ": " + em.Message
}

// EncodeErrorMessage encodes an ErrorMessage to bytes.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	e.WriteUint16(uint16(em.Code))
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
	return e.Bytes()
}

// DecodeErrorMessage decodes an ErrorMessage from bytes.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	em := &ErrorMessage{}

	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	em.Code = ErrorCode(code)

	if em.Message, err = d.ReadString(); err != nil {
		return nil, err
	}
	if em.Fatal, err = d.ReadBool(); err != nil {
		return nil, err
	}
	return em, nil
}
