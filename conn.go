package websock

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/websock/websock/internal/bpool"
	"github.com/websock/websock/internal/errd"
)

// readBufferSize fronts the transport in the default, buffered mode.
// It amortizes read syscalls for frame headers and small control frames.
const readBufferSize = 4096

// deadliner is the optional transport capability used for timeouts.
// net.Conn implements it.
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Conn is a client WebSocket connection over a byte stream transport.
//
// All operations block on the transport from the caller's goroutine;
// there is no background reader. One goroutine reading and another
// writing the same Conn is supported because the inbound and outbound
// byte streams are independent. Two concurrent readers, or two
// concurrent writers, are not.
type Conn struct {
	rwc      io.ReadWriteCloser
	deadline deadliner // nil when rwc cannot arm deadlines

	cr connReader
	cw connWriter

	subprotocol string
	respHeader  http.Header

	readTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func newConn(rwc io.ReadWriteCloser, maskKey [4]byte, opts *DialOptions) *Conn {
	c := &Conn{rwc: rwc}
	c.deadline, _ = rwc.(deadliner)

	var r io.Reader = rwc
	if !opts.Unbuffered {
		r = bufio.NewReaderSize(rwc, readBufferSize)
	}
	c.cr.init(r)
	c.cr.limit = opts.ReadLimit
	c.cw.init(rwc, maskKey)
	return c
}

// Subprotocol returns the subprotocol the server selected during the
// handshake. An empty string means the default protocol.
func (c *Conn) Subprotocol() string {
	return c.subprotocol
}

// ResponseHeader returns the handshake response headers. It is nil on an
// unbuffered connection, which retains only the accept key during the
// handshake.
func (c *Conn) ResponseHeader() http.Header {
	return c.respHeader
}

// SetReadLimit caps the cumulative payload length of a single inbound
// message; exceeding it fails the read with ErrPayloadTooBig before the
// payload of the frame that crosses the cap is consumed. Earlier
// fragments of the same message have already reached the sink by then.
// Zero means unbounded. Not safe to call concurrently with a read.
func (c *Conn) SetReadLimit(n int64) {
	c.cr.limit = n
}

// SetReadTimeout installs a persistent per-read timeout, armed before
// every read call; when the call's context also carries a deadline the
// earlier of the two applies. A timeout that fires
// while the connection is idle between frames surfaces as ErrWouldBlock
// and the read may simply be retried.
func (c *Conn) SetReadTimeout(d time.Duration) {
	c.readTimeout = d
}

// Send writes p as a single complete message of the given type.
// Ping and pong payloads are limited to 125 bytes. MessageClose sends an
// empty close frame; use Close to send a status code and reason.
// MessageContinuation and MessageEnd fail with ErrUseStream.
func (c *Conn) Send(ctx context.Context, typ MessageType, p []byte) (err error) {
	defer errd.Wrap(&err, "failed to send message")
	defer c.armWriteDeadline(ctx)()
	return c.cw.send(typ, p)
}

// Stream writes one fragment of a larger message: MessageText or
// MessageBinary for the first fragment, MessageContinuation for the
// middle ones and MessageEnd for the last. A nil payload emits a
// header-only fragment. The connection keeps no state between fragments;
// the caller owns the ordering.
func (c *Conn) Stream(ctx context.Context, typ MessageType, p []byte) (err error) {
	defer errd.Wrap(&err, "failed to stream fragment")
	defer c.armWriteDeadline(ctx)()
	return c.cw.stream(typ, p)
}

// Ping sends a ping frame carrying a fresh correlation id. The peer's
// pong comes back through the read methods as a MessagePong carrying the
// same payload.
func (c *Conn) Ping(ctx context.Context) (err error) {
	defer errd.Wrap(&err, "failed to ping")
	defer c.armWriteDeadline(ctx)()
	return c.cw.control(opPing, []byte(uuid.NewString()))
}

// Pong sends an unsolicited pong, or answers a received ping when called
// with its payload.
func (c *Conn) Pong(ctx context.Context, p []byte) (err error) {
	defer errd.Wrap(&err, "failed to pong")
	defer c.armWriteDeadline(ctx)()
	return c.cw.control(opPong, p)
}

// Read reads one message into a connection-managed buffer and returns it
// with Data populated. The read limit applies.
func (c *Conn) Read(ctx context.Context) (Message, error) {
	b := bpool.Get()
	defer bpool.Put(b)

	m, err := c.receive(ctx, sink{w: b})
	if err != nil {
		return Message{}, err
	}
	switch m.Type {
	case MessageText, MessageBinary:
		m.Data = append([]byte(nil), b.Bytes()...)
		m.Written = 0
	}
	return m, nil
}

// ReadBuffer reads one message into buf and returns it with Data set to
// the written prefix of buf. The buffer's length caps the message size;
// a message that does not fit fails with ErrPayloadTooBig.
//
// If a control frame arrives while a fragmented message is being
// assembled it is returned on its own and the caller must pass the same
// buffer on the next call to finish the message.
func (c *Conn) ReadBuffer(ctx context.Context, buf []byte) (Message, error) {
	if buf == nil {
		buf = []byte{}
	}
	return c.receive(ctx, sink{buf: buf})
}

// ReadInto reads one message, draining its payload into w, and returns
// it with Written set to the payload length. Control frame payloads are
// returned in Data, not written to w.
func (c *Conn) ReadInto(ctx context.Context, w io.Writer) (Message, error) {
	return c.receive(ctx, sink{w: w})
}

// ReadPartial reads one frame and returns a bounded reader over its
// payload instead of draining it. A fragmented message surfaces as one
// Message per frame; the caller drains each Partial.Reader fully and
// stops once Partial.Complete is true. Leaving a reader undrained
// desynchronizes the connection.
func (c *Conn) ReadPartial(ctx context.Context) (Message, error) {
	return c.receive(ctx, sink{partial: true})
}

func (c *Conn) receive(ctx context.Context, s sink) (Message, error) {
	defer c.armReadDeadline(ctx)()
	return c.cr.receive(s)
}

// Close writes a close frame and then tears the transport down. A zero
// code sends an empty close payload; otherwise the payload carries the
// code and reason per RFC 6455 section 5.5.1.
//
// The peer's answering close frame is not awaited: after a close frame
// in either direction the framing layer makes no further guarantees.
func (c *Conn) Close(code StatusCode, reason string) (err error) {
	defer errd.Wrap(&err, "failed to close connection")

	writeErr := c.cw.close(code, reason)
	closeErr := c.closeTransport()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// CloseNow tears the transport down without writing a close frame. Use
// it after a fatal framing error, when the stream can no longer carry
// one.
func (c *Conn) CloseNow() error {
	return c.closeTransport()
}

func (c *Conn) closeTransport() error {
	c.closeOnce.Do(func() {
		// Handshake state is dropped before the transport goes.
		c.respHeader = nil
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}

// armReadDeadline installs the earlier of the context deadline and the
// persistent read timeout on the transport. The returned func clears it
// again.
func (c *Conn) armReadDeadline(ctx context.Context) func() {
	if c.deadline == nil {
		return func() {}
	}
	t, ok := ctx.Deadline()
	if c.readTimeout > 0 {
		if d := time.Now().Add(c.readTimeout); !ok || d.Before(t) {
			t, ok = d, true
		}
	}
	if !ok {
		return func() {}
	}
	c.deadline.SetReadDeadline(t)
	return func() { c.deadline.SetReadDeadline(time.Time{}) }
}

func (c *Conn) armWriteDeadline(ctx context.Context) func() {
	if c.deadline == nil {
		return func() {}
	}
	t, ok := ctx.Deadline()
	if !ok {
		return func() {}
	}
	c.deadline.SetWriteDeadline(t)
	return func() { c.deadline.SetWriteDeadline(time.Time{}) }
}
