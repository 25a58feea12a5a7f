package connection

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/ajpfahnl/Twoface/src/codec"
	"github.com/ajpfahnl/Twoface/src/stream"
	"golang.org/x/sys/unix"
)

// NetworkStream exposes conn as the network stream of a relay session. The
// stream reads and writes a duplicate of the socket descriptor so it can be
// polled directly; closing the stream does not close conn. A non-nil
// boundary compresses everything crossing the stream.
func NetworkStream(conn net.Conn, boundary *codec.Boundary) (*stream.Stream, error) {
	file, err := socketFile(conn)
	if err != nil {
		return nil, err
	}
	var end stream.Endpoint = file
	if boundary != nil {
		end = WrapWithCompression(file, boundary)
	}
	return stream.New(stream.Network, end), nil
}

// NewBoundary returns the compression boundary for the named codec, or nil
// when compress is off.
func NewBoundary(compress bool, name string) (*codec.Boundary, error) {
	if !compress {
		return nil, nil
	}
	c, err := codec.New(name)
	if err != nil {
		return nil, err
	}
	return codec.NewBoundary(c, stream.FrameSize), nil
}

func socketFile(conn net.Conn) (*os.File, error) {
	filer, ok := conn.(interface{ File() (*os.File, error) })
	if !ok {
		return nil, fmt.Errorf("connection %s has no socket descriptor", conn.RemoteAddr())
	}
	file, err := filer.File()
	if err != nil {
		return nil, fmt.Errorf("duplicate socket %s: %w", conn.RemoteAddr(), err)
	}
	return file, nil
}

// Shutdown disables both directions of the socket so the peer sees
// end-of-stream even while other descriptors for it remain open.
func Shutdown(conn net.Conn) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return fmt.Errorf("connection %s has no socket descriptor", conn.RemoteAddr())
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return fmt.Errorf("shutdown %s: %w", conn.RemoteAddr(), err)
	}
	var shutdownErr error
	if err := raw.Control(func(fd uintptr) {
		shutdownErr = unix.Shutdown(int(fd), unix.SHUT_RDWR)
	}); err != nil {
		return fmt.Errorf("shutdown %s: %w", conn.RemoteAddr(), err)
	}
	if shutdownErr != nil && !errors.Is(shutdownErr, unix.ENOTCONN) {
		return fmt.Errorf("shutdown %s: %w", conn.RemoteAddr(), shutdownErr)
	}
	return nil
}
