// Package xrand provides random value generation for tests.
package xrand

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Bytes generates n random bytes.
func Bytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		panic(fmt.Sprintf("failed to generate rand bytes: %v", err))
	}
	return b
}

// Int returns a random integer in [0, max).
func Int(max int) int {
	x, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(fmt.Sprintf("failed to generate rand int: %v", err))
	}
	return int(x.Int64())
}
