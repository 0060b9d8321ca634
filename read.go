package websock

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"strings"

	"golang.org/x/xerrors"

	"github.com/websock/websock/internal/errd"
)

// maxHTTPHeaderLength caps the bytes consumed while parsing the
// handshake response, status line included.
const maxHTTPHeaderLength = 16384

var (
	keyAccept   = textproto.CanonicalMIMEHeaderKey("Sec-WebSocket-Accept")
	keyProtocol = textproto.CanonicalMIMEHeaderKey("Sec-WebSocket-Protocol")
)

// connReader parses the handshake response and decodes all inbound
// frames. It owns the fragmentation state.
type connReader struct {
	r countingReader

	// limit caps the cumulative payload of a single message.
	// Zero means unbounded.
	limit int64

	frag struct {
		on     bool
		opcode opcode
		n      int64 // payload bytes assembled so far
	}

	controlBuf [maxControlPayload]byte
}

func (cr *connReader) init(r io.Reader) {
	cr.r.r = r
}

// countingReader tracks consumed bytes so a deadline that fires while
// the stream sits between frames can be told apart from one that fires
// mid-frame.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// readLine reads a single \r\n terminated line, consuming nothing past
// the newline. budget is decremented per byte.
func (cr *connReader) readLine(budget *int) (string, error) {
	var line []byte
	var b [1]byte
	for {
		if *budget <= 0 {
			return "", xerrors.Errorf("header section exceeds %v bytes: %w", maxHTTPHeaderLength, ErrHTTPHeaderTooLong)
		}
		_, err := io.ReadFull(&cr.r, b[:])
		if err != nil {
			return "", err
		}
		*budget--
		if b[0] == '\n' {
			break
		}
		line = append(line, b[0])
	}
	if len(line) == 0 || line[len(line)-1] != '\r' {
		return "", xerrors.Errorf("line %q not terminated by \\r\\n: %w", line, ErrBadHTTPResponse)
	}
	return string(line[:len(line)-1]), nil
}

// readResponse parses the handshake response and returns its headers.
// When retain is false only the accept and subprotocol headers are kept,
// so an unbuffered connection holds no header map afterwards.
func (cr *connReader) readResponse(retain bool) (_ http.Header, err error) {
	defer errd.Wrap(&err, "failed to read handshake response")

	budget := maxHTTPHeaderLength

	status, err := cr.readLine(&budget)
	if err != nil {
		return nil, err
	}
	if status != "HTTP/1.1 101 Switching Protocols" {
		return nil, xerrors.Errorf("unexpected status line %q: %w", status, ErrFailedSwitchingProtocols)
	}

	hdr := http.Header{}
	for {
		line, err := cr.readLine(&budget)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return hdr, nil
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, xerrors.Errorf("header line %q has no colon: %w", line, ErrBadHTTPResponse)
		}
		name = textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
		if retain || name == keyAccept || name == keyProtocol {
			hdr.Add(name, strings.TrimSpace(value))
		}
	}
}

// sink selects the receive discipline for one read call. Exactly one
// field is set.
type sink struct {
	w       io.Writer // drain the payload into the caller's writer
	buf     []byte    // fill the caller's buffer; its length caps the limit
	partial bool      // hand back a bounded reader per frame
}

// receive decodes frames until a message can be surfaced: a complete
// data message, a control frame, or one frame's partial handle. Control
// frames interleaved inside a fragmented message are returned as their
// own messages and assembly resumes on the next call, so the caller must
// pass the same sink until the message completes.
func (cr *connReader) receive(s sink) (_ Message, err error) {
	defer errd.Wrap(&err, "failed to read message")

	for {
		start := cr.r.n
		h, err := readFrameHeader(&cr.r)
		if err != nil {
			if isTimeout(err) && cr.r.n == start {
				return Message{}, xerrors.Errorf("no frame arrived before the deadline: %w", ErrWouldBlock)
			}
			return Message{}, err
		}

		if h.masked {
			return Message{}, xerrors.Errorf("frame has the mask bit set: %w", ErrMaskedFrame)
		}
		if h.rsv1 || h.rsv2 || h.rsv3 {
			return Message{}, xerrors.Errorf("frame has reserved bits set (%v:%v:%v) with no extension negotiated: %w", h.rsv1, h.rsv2, h.rsv3, ErrReservedBitsSet)
		}

		switch h.opcode {
		case opClose, opPing, opPong:
			return cr.control(h)
		case opText, opBinary:
			if cr.frag.on {
				return Message{}, xerrors.Errorf("received %v frame while assembling a fragmented message: %w", MessageType(h.opcode), ErrBadMessageOrder)
			}
			if !h.fin {
				cr.frag.on = true
				cr.frag.opcode = h.opcode
				cr.frag.n = 0
			}
			m, done, err := cr.data(h, MessageType(h.opcode), s)
			if err != nil || done {
				return m, err
			}
		case opContinuation:
			if !cr.frag.on {
				return Message{}, xerrors.Errorf("received continuation frame with no fragmented message in progress: %w", ErrBadMessageOrder)
			}
			m, done, err := cr.data(h, MessageType(cr.frag.opcode), s)
			if err != nil || done {
				return m, err
			}
		default:
			return Message{}, xerrors.Errorf("received opcode %#x: %w", int(h.opcode), ErrUnknownOpcode)
		}
	}
}

// control consumes a close, ping or pong frame. Exactly the declared
// payload length is read, never a fixed control frame maximum. The
// fragmentation state is left untouched so an interleaved control frame
// does not disturb assembly.
func (cr *connReader) control(h header) (Message, error) {
	if !h.fin {
		return Message{}, xerrors.Errorf("received fragmented %v frame: %w", MessageType(h.opcode), ErrBadMessageOrder)
	}
	if h.payloadLength > maxControlPayload {
		return Message{}, xerrors.Errorf("control frame payload is %v bytes, max is %v: %w", h.payloadLength, maxControlPayload, ErrPayloadTooBig)
	}

	b := cr.controlBuf[:h.payloadLength]
	_, err := io.ReadFull(&cr.r, b)
	if err != nil {
		return Message{}, xerrors.Errorf("failed to read control frame payload: %w", err)
	}

	if h.opcode != opClose {
		return Message{
			Type: MessageType(h.opcode),
			Data: append([]byte(nil), b...),
		}, nil
	}

	cp, err := parseClosePayload(b)
	if err != nil {
		return Message{}, xerrors.Errorf("received invalid close payload: %w", err)
	}

	m := Message{
		Type: MessageClose,
		Data: []byte(cp.reason),
	}
	if len(b) >= 2 {
		m.Code = cp.code
	}
	return m, nil
}

// data consumes one text, binary or continuation frame under the sink
// discipline. done reports whether a Message is ready: always for the
// partial discipline, otherwise only once the final frame is in.
func (cr *connReader) data(h header, typ MessageType, s sink) (Message, bool, error) {
	if typ == MessageContinuation {
		return Message{}, false, ErrFragmentedMessage
	}

	total := cr.frag.n + h.payloadLength

	// The limit is enforced before any payload is read.
	limit := cr.limit
	if s.buf != nil {
		if c := int64(len(s.buf)); limit == 0 || c < limit {
			limit = c
		}
		if total > limit {
			return Message{}, false, xerrors.Errorf("message of %v bytes exceeds %v byte buffer: %w", total, limit, ErrPayloadTooBig)
		}
	} else if limit > 0 && total > limit {
		return Message{}, false, xerrors.Errorf("message of %v bytes exceeds %v byte limit: %w", total, limit, ErrPayloadTooBig)
	}

	if s.partial {
		if h.fin {
			cr.frag.on = false
			cr.frag.n = 0
		} else {
			cr.frag.n = total
		}
		return Message{
			Type: typ,
			Partial: &Partial{
				Complete: h.fin,
				Reader:   io.LimitReader(&cr.r, h.payloadLength),
			},
		}, true, nil
	}

	if s.w != nil {
		_, err := io.CopyN(s.w, &cr.r, h.payloadLength)
		if err != nil {
			return Message{}, false, xerrors.Errorf("failed to read frame payload: %w", err)
		}
	} else {
		_, err := io.ReadFull(&cr.r, s.buf[cr.frag.n:total])
		if err != nil {
			return Message{}, false, xerrors.Errorf("failed to read frame payload: %w", err)
		}
	}

	if !h.fin {
		cr.frag.n = total
		return Message{}, false, nil
	}

	cr.frag.on = false
	cr.frag.n = 0

	m := Message{Type: typ}
	if s.w != nil {
		m.Written = total
	} else {
		m.Data = s.buf[:total]
	}
	return m, true, nil
}
