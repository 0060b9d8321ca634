package websock

import "encoding/binary"

// mask applies the WebSocket masking algorithm to b with the given key,
// starting at position pos into the key.
// See https://tools.ietf.org/html/rfc6455#section-5.3
//
// The returned value is the key position for the byte after b, so a
// payload can be masked across multiple calls without holding the whole
// frame in memory.
func mask(key [4]byte, pos int, b []byte) int {
	// Once the payload is past a couple of words it is worth masking
	// 8 bytes at a time with a key aligned on the current position.
	// Optimization from https://github.com/golang/go/issues/31586#issuecomment-485530859
	if len(b) >= 16 {
		var aligned [8]byte
		for i := range aligned {
			aligned[i] = key[(i+pos)&3]
		}
		k := binary.LittleEndian.Uint64(aligned[:])

		for len(b) >= 64 {
			v := binary.LittleEndian.Uint64(b)
			binary.LittleEndian.PutUint64(b, v^k)
			v = binary.LittleEndian.Uint64(b[8:])
			binary.LittleEndian.PutUint64(b[8:], v^k)
			v = binary.LittleEndian.Uint64(b[16:])
			binary.LittleEndian.PutUint64(b[16:], v^k)
			v = binary.LittleEndian.Uint64(b[24:])
			binary.LittleEndian.PutUint64(b[24:], v^k)
			v = binary.LittleEndian.Uint64(b[32:])
			binary.LittleEndian.PutUint64(b[32:], v^k)
			v = binary.LittleEndian.Uint64(b[40:])
			binary.LittleEndian.PutUint64(b[40:], v^k)
			v = binary.LittleEndian.Uint64(b[48:])
			binary.LittleEndian.PutUint64(b[48:], v^k)
			v = binary.LittleEndian.Uint64(b[56:])
			binary.LittleEndian.PutUint64(b[56:], v^k)
			b = b[64:]
		}

		// 8 byte chunks preserve the key position modulo 4.
		for len(b) >= 8 {
			v := binary.LittleEndian.Uint64(b)
			binary.LittleEndian.PutUint64(b, v^k)
			b = b[8:]
		}
	}

	for i := range b {
		b[i] ^= key[pos&3]
		pos++
	}
	return pos & 3
}
