package websock

import (
	"bytes"
	"strings"
	"testing"

	"github.com/websock/websock/internal/test/assert"
)

func newTestWriter() (*connWriter, *bytes.Buffer) {
	b := &bytes.Buffer{}
	cw := &connWriter{}
	cw.init(b, [4]byte{0x37, 0xFA, 0x21, 0x3D})
	return cw, b
}

func TestSendClose(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		cw, b := newTestWriter()
		err := cw.send(MessageClose, nil)
		assert.Success(t, err)

		exp := []byte{0x88, 0x80, 0x37, 0xFA, 0x21, 0x3D}
		assert.Equal(t, "wire bytes", exp, b.Bytes())
	})

	t.Run("codeAndReason", func(t *testing.T) {
		t.Parallel()

		cw, b := newTestWriter()
		err := cw.close(StatusNormalClosure, "bye")
		assert.Success(t, err)

		got := b.Bytes()
		assert.Equal(t, "header", []byte{0x88, 0x85, 0x37, 0xFA, 0x21, 0x3D}, got[:6])

		payload := append([]byte(nil), got[6:]...)
		basicMask([4]byte{0x37, 0xFA, 0x21, 0x3D}, 0, payload)
		assert.Equal(t, "close payload", []byte{0x03, 0xE8, 'b', 'y', 'e'}, payload)
	})

	t.Run("reasonTooLong", func(t *testing.T) {
		t.Parallel()

		cw, _ := newTestWriter()
		err := cw.close(StatusNormalClosure, strings.Repeat("a", 124))
		assert.Error(t, err)
	})

	t.Run("reservedCode", func(t *testing.T) {
		t.Parallel()

		cw, _ := newTestWriter()
		err := cw.close(StatusNoStatusRcvd, "")
		assert.Error(t, err)
	})
}

// The first byte of each fragment encodes the fin bit and the wire
// opcode the streaming surface maps onto.
func TestStreamDispatch(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		typ   MessageType
		byte0 byte
	}{
		{name: "first", typ: MessageText, byte0: 0x01},
		{name: "firstBinary", typ: MessageBinary, byte0: 0x02},
		{name: "middle", typ: MessageContinuation, byte0: 0x00},
		{name: "final", typ: MessageEnd, byte0: 0x80},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cw, b := newTestWriter()
			err := cw.stream(tc.typ, nil)
			assert.Success(t, err)
			assert.Equal(t, "first byte", tc.byte0, b.Bytes()[0])
		})
	}

	t.Run("badOpcode", func(t *testing.T) {
		t.Parallel()

		cw, _ := newTestWriter()
		err := cw.stream(MessagePing, nil)
		assert.ErrorIs(t, ErrUnknownOpcode, err)
	})
}

func TestSendDispatch(t *testing.T) {
	t.Parallel()

	cw, _ := newTestWriter()

	err := cw.send(MessageContinuation, nil)
	assert.ErrorIs(t, ErrUseStream, err)

	err = cw.send(MessageEnd, nil)
	assert.ErrorIs(t, ErrUseStream, err)

	err = cw.send(MessageType(7), nil)
	assert.ErrorIs(t, ErrUnknownOpcode, err)

	err = cw.send(MessagePong, bytes.Repeat([]byte("a"), 126))
	assert.ErrorIs(t, ErrPayloadTooBig, err)
}
