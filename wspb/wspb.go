// Package wspb provides helpers for protobuf messages.
package wspb

import (
	"context"

	"github.com/golang/protobuf/proto"
	"golang.org/x/xerrors"

	"github.com/websock/websock"
)

// Read reads a protobuf message from c into v. The connection's read
// limit applies.
func Read(ctx context.Context, c *websock.Conn, v proto.Message) error {
	err := read(ctx, c, v)
	if err != nil {
		return xerrors.Errorf("failed to read protobuf: %w", err)
	}
	return nil
}

func read(ctx context.Context, c *websock.Conn, v proto.Message) error {
	m, err := c.Read(ctx)
	if err != nil {
		return err
	}

	if m.Type != websock.MessageBinary {
		return xerrors.Errorf("unexpected message type for protobuf (expected %v): %v", websock.MessageBinary, m.Type)
	}

	err = proto.Unmarshal(m.Data, v)
	if err != nil {
		return xerrors.Errorf("failed to unmarshal protobuf: %w", err)
	}
	return nil
}

// Write writes the protobuf message v to c.
func Write(ctx context.Context, c *websock.Conn, v proto.Message) error {
	err := write(ctx, c, v)
	if err != nil {
		return xerrors.Errorf("failed to write protobuf: %w", err)
	}
	return nil
}

func write(ctx context.Context, c *websock.Conn, v proto.Message) error {
	b, err := proto.Marshal(v)
	if err != nil {
		return xerrors.Errorf("failed to marshal protobuf: %w", err)
	}

	return c.Send(ctx, websock.MessageBinary, b)
}
