package websock

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/xerrors"

	"github.com/websock/websock/internal/errd"
)

// DialOptions configures Dial and NewClient.
type DialOptions struct {
	// HTTPHeader lists extra headers for the handshake request. They are
	// emitted after the fixed upgrade block, in sorted key order. Host
	// is filled in from the url when not supplied here.
	HTTPHeader http.Header

	// Subprotocols fills the Sec-WebSocket-Protocol request header.
	// The server's pick is available from Conn.Subprotocol.
	Subprotocols []string

	// Unbuffered disables the read buffer in front of the transport.
	// Frames are then read directly and only the accept key is kept
	// during the handshake; Conn.ResponseHeader returns nil.
	Unbuffered bool

	// ReadLimit is the initial cumulative payload cap per message.
	// Zero means unbounded. See Conn.SetReadLimit.
	ReadLimit int64

	// NetDialer opens the TCP connection in Dial. Defaults to a zero
	// net.Dialer.
	NetDialer *net.Dialer
}

// Dial opens a TCP connection to the host in u and performs the opening
// handshake on it. The scheme must be ws; its default port is 80.
func Dial(ctx context.Context, u string, opts *DialOptions) (_ *Conn, err error) {
	defer errd.Wrap(&err, "failed to dial websocket")

	if opts == nil {
		opts = &DialOptions{}
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse url: %w", err)
	}

	var port string
	switch parsed.Scheme {
	case "ws":
		port = "80"
	case "wss":
		// TODO terminate TLS here with crypto/tls; the framing layer
		// already runs over any io.ReadWriteCloser. Default port 443.
		return nil, xerrors.New("wss is not supported yet")
	default:
		return nil, xerrors.Errorf("scheme %q: %w", parsed.Scheme, ErrUnknownScheme)
	}

	if parsed.Host == "" {
		return nil, xerrors.Errorf("url %q: %w", u, ErrMissingHost)
	}
	addr := parsed.Host
	if parsed.Port() == "" {
		addr = net.JoinHostPort(parsed.Hostname(), port)
	}

	d := opts.NetDialer
	if d == nil {
		d = &net.Dialer{}
	}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	c, err := NewClient(ctx, nc, u, opts)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// NewClient performs the client side of the opening handshake over rwc
// and returns the connection, which owns rwc from then on. On error the
// caller still owns rwc and must close it.
//
// The outbound masking key is drawn here, once, from crypto/rand and
// reused for the lifetime of the connection. That is protocol-legal: the
// key travels with every frame either way.
func NewClient(ctx context.Context, rwc io.ReadWriteCloser, u string, opts *DialOptions) (_ *Conn, err error) {
	defer errd.Wrap(&err, "failed to complete websocket handshake")

	if opts == nil {
		opts = &DialOptions{}
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse url: %w", err)
	}

	var maskKey [4]byte
	_, err = rand.Read(maskKey[:])
	if err != nil {
		return nil, xerrors.Errorf("failed to generate masking key: %w", err)
	}

	c := newConn(rwc, maskKey, opts)
	err = c.handshake(ctx, parsed, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conn) handshake(ctx context.Context, u *url.URL, opts *DialOptions) error {
	key, err := secWebSocketKey()
	if err != nil {
		return err
	}

	hdr := make(http.Header, len(opts.HTTPHeader)+2)
	for k, v := range opts.HTTPHeader {
		hdr[k] = v
	}
	if hdr.Get("Host") == "" {
		if u.Host == "" {
			return xerrors.Errorf("url %q: %w", u, ErrMissingHost)
		}
		hdr.Set("Host", u.Host)
	}
	if len(opts.Subprotocols) > 0 {
		hdr.Set("Sec-WebSocket-Protocol", strings.Join(opts.Subprotocols, ", "))
	}

	defer c.armWriteDeadline(ctx)()
	defer c.armReadDeadline(ctx)()

	err = c.cw.writeRequest(u, hdr, key)
	if err != nil {
		return err
	}

	respHdr, err := c.cr.readResponse(!opts.Unbuffered)
	if err != nil {
		return err
	}

	accept := respHdr.Get(keyAccept)
	if accept == "" {
		return ErrAcceptKeyNotFound
	}
	if accept != secWebSocketAccept(key) {
		return xerrors.Errorf("got %q: %w", accept, ErrKeyMismatch)
	}

	c.subprotocol = respHdr.Get(keyProtocol)
	if !opts.Unbuffered {
		c.respHeader = respHdr
	}
	return nil
}

// secWebSocketKey draws the 16 byte handshake challenge and encodes it
// as the 24 character Sec-WebSocket-Key value.
func secWebSocketKey() (string, error) {
	var b [16]byte
	_, err := rand.Read(b[:])
	if err != nil {
		return "", xerrors.Errorf("failed to generate Sec-WebSocket-Key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b[:]), nil
}

// secWebSocketAccept computes the expected Sec-WebSocket-Accept digest
// for a sent challenge key.
// See https://tools.ietf.org/html/rfc6455#section-1.3
func secWebSocketAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
