package websock

import (
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/xerrors"

	"github.com/websock/websock/internal/errd"
)

// opcode represents a WebSocket opcode.
// See https://tools.ietf.org/html/rfc6455#section-11.8.
type opcode int

const (
	opContinuation opcode = iota
	opText
	opBinary
	// 3 - 7 are reserved for further non-control frames.
	_
	_
	_
	_
	_
	opClose
	opPing
	opPong
	// 11 - 15 are reserved for further control frames.
)

// opFin is the synthetic opcode behind MessageEnd. It marks the final
// fragment of a streamed message and never appears on the wire.
const opFin opcode = 0xF

// maxControlPayload is the maximum length of a control frame payload.
// See https://tools.ietf.org/html/rfc6455#section-5.5.
const maxControlPayload = 125

// header represents a WebSocket frame header.
// See https://tools.ietf.org/html/rfc6455#section-5.2.
type header struct {
	fin    bool
	rsv1   bool
	rsv2   bool
	rsv3   bool
	opcode opcode

	payloadLength int64

	masked  bool
	maskKey [4]byte
}

// readFrameHeader reads a frame header from r.
// The masking key, when the mask bit is set, is consumed as part of the
// header so the caller can reject masked frames without desynchronizing.
func readFrameHeader(r io.Reader) (_ header, err error) {
	defer errd.Wrap(&err, "failed to read frame header")

	var b [8]byte
	_, err = io.ReadFull(r, b[:2])
	if err != nil {
		return header{}, err
	}

	var h header
	h.fin = b[0]&(1<<7) != 0
	h.rsv1 = b[0]&(1<<6) != 0
	h.rsv2 = b[0]&(1<<5) != 0
	h.rsv3 = b[0]&(1<<4) != 0
	h.opcode = opcode(b[0] & 0xf)

	h.masked = b[1]&(1<<7) != 0

	switch len7 := b[1] &^ (1 << 7); {
	case len7 < 126:
		h.payloadLength = int64(len7)
	case len7 == 126:
		_, err = io.ReadFull(r, b[:2])
		h.payloadLength = int64(binary.BigEndian.Uint16(b[:2]))
	case len7 == 127:
		_, err = io.ReadFull(r, b[:8])
		h.payloadLength = int64(binary.BigEndian.Uint64(b[:8]))
	}
	if err != nil {
		return header{}, err
	}
	if h.payloadLength < 0 {
		return header{}, xerrors.Errorf("received negative payload length: %v", h.payloadLength)
	}

	if h.masked {
		_, err = io.ReadFull(r, h.maskKey[:])
		if err != nil {
			return header{}, err
		}
	}

	return h, nil
}

// maxHeaderSize is the largest serialized header: two fixed bytes, an
// eight byte extended length and a four byte masking key.
const maxHeaderSize = 2 + 8 + 4

// writeFrameHeader serializes h into buf and emits it to w in a single
// write of 2 to 14 bytes. buf must have capacity for maxHeaderSize.
func writeFrameHeader(h header, w io.Writer, buf []byte) (err error) {
	defer errd.Wrap(&err, "failed to write frame header")

	b := buf[:0]

	var b0 byte
	if h.fin {
		b0 |= 1 << 7
	}
	if h.rsv1 {
		b0 |= 1 << 6
	}
	if h.rsv2 {
		b0 |= 1 << 5
	}
	if h.rsv3 {
		b0 |= 1 << 4
	}
	b0 |= byte(h.opcode)
	b = append(b, b0)

	var lengthByte byte
	if h.masked {
		lengthByte = 1 << 7
	}
	switch {
	case h.payloadLength > math.MaxUint16:
		b = append(b, lengthByte|127)
		b = binary.BigEndian.AppendUint64(b, uint64(h.payloadLength))
	case h.payloadLength > 125:
		b = append(b, lengthByte|126)
		b = binary.BigEndian.AppendUint16(b, uint16(h.payloadLength))
	default:
		b = append(b, lengthByte|byte(h.payloadLength))
	}

	if h.masked {
		b = append(b, h.maskKey[:]...)
	}

	_, err = w.Write(b)
	return err
}
