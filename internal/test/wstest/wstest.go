// Package wstest runs gorilla/websocket backed servers for tests to
// dial against.
package wstest

import (
	"net"
	"net/http"
	"testing"

	"github.com/gorilla/websocket"
)

// Server starts a WebSocket server that runs fn on every accepted
// connection and returns its ws url. The server is torn down with the
// test.
func Server(t testing.TB, fn func(c *websocket.Conn), subprotocols ...string) string {
	t.Helper()

	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	up := websocket.Upgrader{Subprotocols: subprotocols}
	s := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := up.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer c.Close()
			fn(c)
		}),
	}
	go s.Serve(l)

	t.Cleanup(func() {
		s.Close()
	})

	return "ws://" + l.Addr().String()
}

// EchoServer starts a server that echoes every data message back.
func EchoServer(t testing.TB, subprotocols ...string) string {
	t.Helper()
	return Server(t, Echo, subprotocols...)
}

// Echo reflects data messages until the connection errors. Control
// frames are handled by gorilla's defaults: pings are answered with
// pongs carrying the same payload.
func Echo(c *websocket.Conn) {
	for {
		typ, p, err := c.ReadMessage()
		if err != nil {
			return
		}
		err = c.WriteMessage(typ, p)
		if err != nil {
			return
		}
	}
}
