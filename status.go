package websock

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// StatusCode represents a WebSocket close status code.
// See https://tools.ietf.org/html/rfc6455#section-7.4
type StatusCode int

// The defined constants only represent the status codes registered with IANA.
// The 4000-4999 range is reserved for arbitrary use by applications.
// See https://www.iana.org/assignments/websocket/websocket.xhtml#close-code-number
const (
	StatusNormalClosure   StatusCode = 1000
	StatusGoingAway       StatusCode = 1001
	StatusProtocolError   StatusCode = 1002
	StatusUnsupportedData StatusCode = 1003

	// 1004 is reserved and so unexported.
	statusReserved StatusCode = 1004

	// StatusNoStatusRcvd cannot be sent in a close frame. It is reserved
	// for when a close frame is received without an explicit code.
	StatusNoStatusRcvd StatusCode = 1005

	// StatusAbnormalClosure cannot be sent in a close frame either; it
	// signals the connection dropped without one.
	StatusAbnormalClosure StatusCode = 1006

	StatusInvalidFramePayloadData StatusCode = 1007
	StatusPolicyViolation         StatusCode = 1008
	StatusMessageTooBig           StatusCode = 1009
	StatusMandatoryExtension      StatusCode = 1010
	StatusInternalError           StatusCode = 1011
	StatusServiceRestart          StatusCode = 1012
	StatusTryAgainLater           StatusCode = 1013
	StatusBadGateway              StatusCode = 1014

	statusTLSHandshake StatusCode = 1015
)

// closePayload is the decoded form of a close frame payload. A received
// close surfaces as an ordinary Message, never as an error.
type closePayload struct {
	code   StatusCode
	reason string
}

// parseClosePayload decodes a close frame payload. An empty payload is
// legal and maps to StatusNoStatusRcvd. A one byte payload cannot carry
// a status code and is a protocol violation.
func parseClosePayload(p []byte) (closePayload, error) {
	if len(p) == 0 {
		return closePayload{code: StatusNoStatusRcvd}, nil
	}
	if len(p) == 1 {
		return closePayload{}, xerrors.Errorf("close payload of one byte cannot carry a status code: %w", ErrBadClosePayload)
	}
	return closePayload{
		code:   StatusCode(binary.BigEndian.Uint16(p)),
		reason: string(p[2:]),
	}, nil
}

// validWireCloseCode reports whether code may be sent over the wire.
// See https://tools.ietf.org/html/rfc6455#section-7.4.1
func validWireCloseCode(code StatusCode) bool {
	switch code {
	case statusReserved, StatusNoStatusRcvd, StatusAbnormalClosure, statusTLSHandshake:
		return false
	}
	if code >= StatusNormalClosure && code <= StatusBadGateway {
		return true
	}
	if code >= 3000 && code <= 4999 {
		return true
	}
	return false
}

// bytes encodes the close payload: a big-endian status code followed by
// the reason. See https://tools.ietf.org/html/rfc6455#section-5.5.1
func (cp closePayload) bytes() ([]byte, error) {
	if len(cp.reason) > maxControlPayload-2 {
		return nil, xerrors.Errorf("close reason longer than %v bytes: %q", maxControlPayload-2, cp.reason)
	}
	if !validWireCloseCode(cp.code) {
		return nil, xerrors.Errorf("status code %v cannot be sent", cp.code)
	}

	p := make([]byte, 2+len(cp.reason))
	binary.BigEndian.PutUint16(p, uint16(cp.code))
	copy(p[2:], cp.reason)
	return p, nil
}
