// Package protocol implements the binary wire protocol between the
// URL binding server and its clients.
//
// Events flow from client to server; history commits flow from server
// to client. Both travel over a single WebSocket connection as framed
// binary messages.
//
// # Wire Format
//
// All messages are framed with a 4-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// # Frame Types
//
//   - FrameHello (0x00): client handshake, carries the page URL
//   - FrameHelloAck (0x01): server handshake response
//   - FrameEvent (0x02): client → server named UI event
//   - FrameCommit (0x03): server → client history commit (replace/push)
//   - FrameNavigate (0x04): client → server navigation notice (popstate)
//   - FrameAck (0x05): client → server commit acknowledgment
//   - FrameControl (0x06): ping/pong and close
//   - FrameError (0x07): coded error
//
// # Encoding
//
// Payloads use varints for small integers, varint-length-prefixed
// UTF-8 for strings, and big-endian for fixed-width integers.
//
// # Session Flow
//
// Connection establishment seeds the server's URL mirror from the
// client's current location; afterwards every binding write on the
// server becomes a Commit frame, and every navigation on the client
// becomes a Navigate frame:
//
//	Client                              Server
//	  │                                    │
//	  │──── Hello (version, url) ────────>│
//	  │<─── HelloAck (session, next seq) ──│
//	  │                                    │
//	  │──── Event "filter.select" ───────>│
//	  │<─── Commit replace /blog?tag=js ───│
//	  │──── Ack ─────────────────────────>│
//	  │                                    │
//	  │   (user presses back)              │
//	  │──── Navigate pop /blog ──────────>│
//	  │                                    │
//
// A Commit instructs the client to call the history facility exactly
// once, with replace or push semantics; the server never manipulates
// client history by any other means.
package protocol
