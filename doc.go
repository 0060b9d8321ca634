// Package websock is a client-side implementation of the WebSocket protocol.
//
// It performs the opening handshake as the initiating side over any byte
// stream transport and then frames messages on and off the wire until the
// connection is closed. Everything is synchronous: each operation is a
// sequence of blocking reads and writes on the caller's goroutine. One
// goroutine reading and another writing the same Conn is supported.
//
// See https://tools.ietf.org/html/rfc6455
package websock
