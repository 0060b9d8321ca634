package websock

import (
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/xerrors"

	"github.com/websock/websock/internal/errd"
)

// maskChunk is the size of the scratch buffer outbound payloads are
// masked through. The caller's slice is never written to.
const maskChunk = 1024

// connWriter emits the handshake request and all client frames. It owns
// the masking key, drawn once when the connection is built.
type connWriter struct {
	w io.Writer

	maskKey [4]byte

	scratch [maskChunk]byte
	hbuf    [maxHeaderSize]byte
}

func (cw *connWriter) init(w io.Writer, maskKey [4]byte) {
	cw.w = w
	cw.maskKey = maskKey
}

// writeRequest emits the opening handshake request in a single pass.
// The fixed upgrade block comes first so a caller header cannot displace
// it; caller headers follow in sorted key order.
func (cw *connWriter) writeRequest(u *url.URL, hdr http.Header, key string) (err error) {
	defer errd.Wrap(&err, "failed to write handshake request")

	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(u.RequestURI())
	if u.Fragment != "" {
		b.WriteString("#" + u.Fragment)
	}
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Pragma: no-cache\r\n")
	b.WriteString("Cache-Control: no-cache\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Sec-WebSocket-Version: 13\r\n")
	b.WriteString("Sec-WebSocket-Key: " + key + "\r\n")

	keys := make([]string, 0, len(hdr))
	for k := range hdr {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range hdr[k] {
			b.WriteString(k + ": " + v + "\r\n")
		}
	}
	b.WriteString("\r\n")

	_, err = io.WriteString(cw.w, b.String())
	return err
}

// send writes p as a single complete message.
func (cw *connWriter) send(typ MessageType, p []byte) error {
	switch op := opcode(typ); op {
	case opText, opBinary:
		return cw.frame(true, op, p)
	case opPing, opPong:
		return cw.control(op, p)
	case opClose:
		return cw.close(0, "")
	case opContinuation, opFin:
		return xerrors.Errorf("cannot send %v: %w", typ, ErrUseStream)
	default:
		return xerrors.Errorf("cannot send opcode %#x: %w", int(typ), ErrUnknownOpcode)
	}
}

// stream writes one fragment of a larger message. The writer keeps no
// state between fragments; the caller owns the ordering. A nil payload
// emits a header-only fragment, which is how a stream is terminated when
// the final data fit into an earlier fragment.
func (cw *connWriter) stream(typ MessageType, p []byte) error {
	switch opcode(typ) {
	case opText, opBinary:
		return cw.frame(false, opcode(typ), p)
	case opContinuation:
		return cw.frame(false, opContinuation, p)
	case opFin:
		return cw.frame(true, opContinuation, p)
	default:
		return xerrors.Errorf("cannot stream opcode %#x: %w", int(typ), ErrUnknownOpcode)
	}
}

func (cw *connWriter) control(op opcode, p []byte) error {
	if len(p) > maxControlPayload {
		return xerrors.Errorf("control frame payload is %v bytes, max is %v: %w", len(p), maxControlPayload, ErrPayloadTooBig)
	}
	return cw.frame(true, op, p)
}

// close writes a close frame. A zero code sends an empty close payload;
// otherwise the payload is the code and reason per RFC 6455 section 5.5.1.
func (cw *connWriter) close(code StatusCode, reason string) error {
	if code == 0 {
		return cw.frame(true, opClose, nil)
	}
	p, err := closePayload{code: code, reason: reason}.bytes()
	if err != nil {
		return xerrors.Errorf("failed to encode close payload: %w", err)
	}
	return cw.control(opClose, p)
}

// frame writes a single masked frame. The header goes out in one write;
// the payload follows through the scratch buffer.
func (cw *connWriter) frame(fin bool, op opcode, p []byte) (err error) {
	defer errd.Wrap(&err, "failed to write frame")

	h := header{
		fin:           fin,
		opcode:        op,
		masked:        true,
		maskKey:       cw.maskKey,
		payloadLength: int64(len(p)),
	}
	err = writeFrameHeader(h, cw.w, cw.hbuf[:])
	if err != nil {
		return err
	}
	return cw.maskedPayload(p)
}

// maskedPayload copies p through the scratch buffer one chunk at a time,
// masking each chunk before it goes out. The key position carries over
// between chunks; resetting it would corrupt any payload larger than the
// scratch buffer.
func (cw *connWriter) maskedPayload(p []byte) error {
	pos := 0
	for len(p) > 0 {
		n := len(p)
		if n > maskChunk {
			n = maskChunk
		}
		copy(cw.scratch[:n], p[:n])
		pos = mask(cw.maskKey, pos, cw.scratch[:n])
		_, err := cw.w.Write(cw.scratch[:n])
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
