// Package wsjson provides helpers for JSON messages.
package wsjson

import (
	"context"
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/websock/websock"
	"github.com/websock/websock/internal/bpool"
)

// Read reads a json message from c into v. The connection's read limit
// applies.
func Read(ctx context.Context, c *websock.Conn, v interface{}) error {
	err := read(ctx, c, v)
	if err != nil {
		return xerrors.Errorf("failed to read json: %w", err)
	}
	return nil
}

func read(ctx context.Context, c *websock.Conn, v interface{}) error {
	m, err := c.Read(ctx)
	if err != nil {
		return err
	}

	if m.Type != websock.MessageText {
		return xerrors.Errorf("unexpected message type for json (expected %v): %v", websock.MessageText, m.Type)
	}

	err = json.Unmarshal(m.Data, v)
	if err != nil {
		return xerrors.Errorf("failed to unmarshal json: %w", err)
	}
	return nil
}

// Write writes the json message v to c.
func Write(ctx context.Context, c *websock.Conn, v interface{}) error {
	err := write(ctx, c, v)
	if err != nil {
		return xerrors.Errorf("failed to write json: %w", err)
	}
	return nil
}

func write(ctx context.Context, c *websock.Conn, v interface{}) error {
	b := bpool.Get()
	defer bpool.Put(b)

	err := json.NewEncoder(b).Encode(v)
	if err != nil {
		return xerrors.Errorf("failed to encode json: %w", err)
	}

	return c.Send(ctx, websock.MessageText, b.Bytes())
}
