package websock

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/websock/websock/internal/test/assert"
	"github.com/websock/websock/internal/test/xrand"
)

// basicMask is the straightforward rendition of the masking algorithm,
// used as the reference the optimized version must agree with.
func basicMask(key [4]byte, pos int, b []byte) int {
	for i := range b {
		b[i] ^= key[pos&3]
		pos++
	}
	return pos & 3
}

func TestMask(t *testing.T) {
	t.Parallel()

	sizes := []int{0, 1, 2, 3, 4, 7, 8, 15, 16, 31, 63, 64, 65, 100, 256, 1000}

	for _, size := range sizes {
		size := size
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			t.Parallel()

			for pos := 0; pos < 4; pos++ {
				var key [4]byte
				copy(key[:], xrand.Bytes(4))
				p := xrand.Bytes(size)

				exp := append([]byte(nil), p...)
				expPos := basicMask(key, pos, exp)

				got := append([]byte(nil), p...)
				gotPos := mask(key, pos, got)

				assert.Equal(t, "masked bytes", exp, got)
				assert.Equal(t, "key position", expPos, gotPos)
			}
		})
	}
}

// Masking twice with the same key and starting position must give back
// the original bytes.
func TestMaskSelfInverse(t *testing.T) {
	t.Parallel()

	for i := 0; i < 100; i++ {
		var key [4]byte
		copy(key[:], xrand.Bytes(4))
		p := xrand.Bytes(xrand.Int(2048))
		exp := append([]byte(nil), p...)

		mask(key, 0, p)
		mask(key, 0, p)

		assert.Equal(t, "unmasked bytes", exp, p)
	}
}

// The key position must carry over between chunks; payloads straddling
// the scratch buffer boundary are the regression case.
func TestMaskedPayloadChunking(t *testing.T) {
	t.Parallel()

	sizes := []int{
		0,
		1,
		maskChunk - 1,
		maskChunk,
		maskChunk + 1,
		maskChunk + 2,
		3*maskChunk + 7,
	}

	for _, size := range sizes {
		size := size
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			t.Parallel()

			var key [4]byte
			copy(key[:], xrand.Bytes(4))
			p := xrand.Bytes(size)
			orig := append([]byte(nil), p...)

			b := &bytes.Buffer{}
			var cw connWriter
			cw.init(b, key)

			err := cw.maskedPayload(p)
			assert.Success(t, err)

			// The caller's slice must not have been written to.
			assert.Equal(t, "input payload", orig, p)

			got := b.Bytes()
			basicMask(key, 0, got)
			assert.Equal(t, "unmasked output", orig, got)
		})
	}
}
