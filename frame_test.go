package websock

import (
	"bytes"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/gobwas/ws"

	"github.com/websock/websock/internal/test/assert"
)

func TestHeader(t *testing.T) {
	t.Parallel()

	t.Run("lengths", func(t *testing.T) {
		t.Parallel()

		lengths := []int64{
			0,
			1,
			125,
			126,
			127,

			65534,
			65535,
			65536,
			65537,

			1 << 32,
			1<<63 - 1,
		}

		for _, n := range lengths {
			n := n
			t.Run(strconv.FormatInt(n, 10), func(t *testing.T) {
				t.Parallel()

				testHeader(t, header{
					payloadLength: n,
				})
			})
		}
	})

	t.Run("fuzz", func(t *testing.T) {
		t.Parallel()

		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		randBool := func() bool {
			return r.Intn(2) == 0
		}

		for i := 0; i < 10000; i++ {
			h := header{
				fin:    randBool(),
				rsv1:   randBool(),
				rsv2:   randBool(),
				rsv3:   randBool(),
				opcode: opcode(r.Intn(16)),

				masked:        randBool(),
				payloadLength: r.Int63(),
			}
			if h.masked {
				r.Read(h.maskKey[:])
			}

			testHeader(t, h)
		}
	})
}

func testHeader(t *testing.T, h header) {
	b := &bytes.Buffer{}

	err := writeFrameHeader(h, b, make([]byte, maxHeaderSize))
	assert.Success(t, err)

	h2, err := readFrameHeader(b)
	assert.Success(t, err)

	assert.Equal(t, "read header", h, h2)
}

// The serialized form must agree byte for byte with gobwas/ws.
func TestHeaderGobwas(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < 1000; i++ {
		h := header{
			fin:           r.Intn(2) == 0,
			opcode:        []opcode{opContinuation, opText, opBinary, opClose, opPing, opPong}[r.Intn(6)],
			masked:        r.Intn(2) == 0,
			payloadLength: r.Int63(),
		}
		if h.masked {
			r.Read(h.maskKey[:])
		}

		mine := &bytes.Buffer{}
		err := writeFrameHeader(h, mine, make([]byte, maxHeaderSize))
		assert.Success(t, err)

		theirs := &bytes.Buffer{}
		err = ws.WriteHeader(theirs, ws.Header{
			Fin:    h.fin,
			OpCode: ws.OpCode(h.opcode),
			Masked: h.masked,
			Mask:   h.maskKey,
			Length: h.payloadLength,
		})
		assert.Success(t, err)

		assert.Equal(t, "serialized header", theirs.Bytes(), mine.Bytes())
	}
}

// A text frame with a known masking key must serialize to the exact
// wire bytes of RFC 6455's masking example.
func TestFrameWireVector(t *testing.T) {
	t.Parallel()

	b := &bytes.Buffer{}
	var cw connWriter
	cw.init(b, [4]byte{0x37, 0xFA, 0x21, 0x3D})

	err := cw.frame(true, opText, []byte("Hello"))
	assert.Success(t, err)

	exp := []byte{0x81, 0x85, 0x37, 0xFA, 0x21, 0x3D, 0x7F, 0x9F, 0x4D, 0x51, 0x58}
	assert.Equal(t, "wire bytes", exp, b.Bytes())
}
