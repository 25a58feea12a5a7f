package connection

import (
	"fmt"

	"github.com/ajpfahnl/Twoface/src/codec"
	"github.com/ajpfahnl/Twoface/src/stream"
)

// CompressedConn passes every write through the compression boundary and
// every read back out of it. There is no length prefix on the wire: one
// Write produces one chunk in one write call, and one Read expects to drain
// exactly one chunk written by the peer.
type CompressedConn struct {
	conn     stream.Endpoint
	boundary *codec.Boundary
	wire     []byte
}

// WrapWithCompression returns conn wrapped by boundary.
func WrapWithCompression(conn stream.Endpoint, boundary *codec.Boundary) *CompressedConn {
	return &CompressedConn{
		conn:     conn,
		boundary: boundary,
		wire:     make([]byte, boundary.WireSize()),
	}
}

func (c *CompressedConn) Fd() uintptr { return c.conn.Fd() }

func (c *CompressedConn) Close() error {
	return c.conn.Close()
}

// Read reads one chunk and decodes it into p. A decode failure means the
// peer is not speaking the same codec and is returned as an error.
func (c *CompressedConn) Read(p []byte) (int, error) {
	n, err := c.conn.Read(c.wire)
	if n == 0 {
		return 0, err
	}
	plain, err := c.boundary.Decode(c.wire[:n], len(p))
	if err != nil {
		return 0, fmt.Errorf("decode %d byte chunk: %w", n, err)
	}
	return copy(p, plain), nil
}

// Write encodes p and writes it. It returns len(p) on success.
func (c *CompressedConn) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > stream.FrameSize {
			chunk = chunk[:stream.FrameSize]
		}
		wire, err := c.boundary.Encode(chunk)
		if err != nil {
			return total, err
		}
		if _, err := c.conn.Write(wire); err != nil {
			return total, err
		}
		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}
