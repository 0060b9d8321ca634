package websock

import "errors"

// Sentinel errors for the failure modes of the handshake and the framing
// layer. Failures of those checks wrap one of these; match with errors.Is.
// Transport and url parse errors, the wss refusal in Dial, a rejected
// outbound close payload and a negative frame length wrap none of them.
//
// Every framing error except ErrWouldBlock leaves the byte stream in an
// indeterminate state. The only safe next step is to close the connection.
var (
	// Handshake failures. The connection is unusable afterwards.
	ErrUnknownScheme            = errors.New("websock: unknown url scheme")
	ErrMissingHost              = errors.New("websock: no host in url or Host header")
	ErrFailedSwitchingProtocols = errors.New("websock: server did not switch protocols")
	ErrBadHTTPResponse          = errors.New("websock: malformed http response")
	ErrHTTPHeaderTooLong        = errors.New("websock: http header section too long")
	ErrAcceptKeyNotFound        = errors.New("websock: no Sec-WebSocket-Accept header in response")
	ErrKeyMismatch              = errors.New("websock: Sec-WebSocket-Accept does not match the sent key")

	// Framing failures.
	ErrMaskedFrame       = errors.New("websock: received masked frame from server")
	ErrReservedBitsSet   = errors.New("websock: received frame with reserved bits set")
	ErrUnknownOpcode     = errors.New("websock: unknown opcode")
	ErrFragmentedMessage = errors.New("websock: message cannot carry the continuation opcode")
	ErrBadMessageOrder   = errors.New("websock: frame violates fragmentation order")
	ErrBadClosePayload   = errors.New("websock: malformed close frame payload")
	ErrPayloadTooBig     = errors.New("websock: payload exceeds limit")

	// ErrUseStream is returned by Send for the fragment-only opcodes.
	ErrUseStream = errors.New("websock: opcode is only valid with Stream")

	// ErrWouldBlock is returned when a read deadline fires before the
	// first byte of the next frame. The stream has not advanced and the
	// read may be retried with a longer deadline.
	ErrWouldBlock = errors.New("websock: read deadline exceeded while waiting for a frame")
)
